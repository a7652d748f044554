package cmd

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/iksnae/rag-client/internal"
	"github.com/spf13/cobra"
)

var (
	inspectFormat string
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect [database-path]",
	Short: "Inspect the local client database",
	Long: `Inspect the schema and contents of the local client database.

This command shows:
  • Tables, columns and row counts
  • Stored keys with token values masked

Examples:
  rag-client inspect                    # Inspect the database in the data directory
  rag-client inspect ./client.db        # Inspect a specific database
  rag-client inspect --format json      # JSON output`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := internal.DatabasePath(dataDir)
		if len(args) > 0 {
			dbPath = args[0]
		}
		if _, err := os.Stat(dbPath); err != nil {
			return fmt.Errorf("no database at %s: %w", dbPath, err)
		}

		report, err := inspectDatabase(dbPath)
		if err != nil {
			return err
		}

		switch inspectFormat {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		case "text":
			printInspectReport(cmd.OutOrStdout(), report)
			return nil
		default:
			return fmt.Errorf("unsupported format: %s (supported: text, json)", inspectFormat)
		}
	},
}

// ColumnInfo describes one table column
type ColumnInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	NotNull    bool   `json:"not_null"`
	PrimaryKey bool   `json:"primary_key"`
}

// TableReport describes one table
type TableReport struct {
	Name    string       `json:"name"`
	Rows    int          `json:"rows"`
	Columns []ColumnInfo `json:"columns"`
}

// InspectReport is the result of inspecting a database
type InspectReport struct {
	Path    string            `json:"path"`
	Tables  []TableReport     `json:"tables"`
	Entries map[string]string `json:"entries"`
}

func inspectDatabase(dbPath string) (*InspectReport, error) {
	db, err := internal.OpenDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	tables, err := getTables(db)
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}

	report := &InspectReport{Path: dbPath, Entries: map[string]string{}}
	for _, name := range tables {
		table := TableReport{Name: name}
		if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %q", name)).Scan(&table.Rows); err != nil {
			return nil, fmt.Errorf("failed to count rows of %s: %w", name, err)
		}
		if table.Columns, err = getTableSchema(db, name); err != nil {
			return nil, fmt.Errorf("failed to get schema of %s: %w", name, err)
		}
		report.Tables = append(report.Tables, table)
	}

	pairs, err := internal.QueryClientKV(db, "%")
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		report.Entries[p.Key] = p.Redacted()
	}
	return report, nil
}

func getTables(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func getTableSchema(db *sql.DB, tableName string) ([]ColumnInfo, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%q)", tableName))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var columns []ColumnInfo
	for rows.Next() {
		var (
			col          ColumnInfo
			cid          int
			notNull, pk  int
			defaultValue sql.NullString
		)
		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &defaultValue, &pk); err != nil {
			return nil, err
		}
		col.NotNull = notNull == 1
		col.PrimaryKey = pk == 1
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func printInspectReport(out io.Writer, report *InspectReport) {
	fmt.Fprintf(out, "📋 Database: %s\n", report.Path)
	fmt.Fprintf(out, "📊 Found %d table(s)\n\n", len(report.Tables))

	for _, table := range report.Tables {
		fmt.Fprintln(out, sectionStyle.Render("📦 Table: "+table.Name))
		fmt.Fprintf(out, "📊 Rows: %d\n", table.Rows)
		fmt.Fprintln(out, "📐 Schema:")
		for _, col := range table.Columns {
			pk := ""
			if col.PrimaryKey {
				pk = " [PRIMARY KEY]"
			}
			notNull := ""
			if col.NotNull {
				notNull = " NOT NULL"
			}
			fmt.Fprintf(out, "  • %s: %s%s%s\n", col.Name, col.Type, notNull, pk)
		}
		fmt.Fprintln(out)
	}

	if len(report.Entries) == 0 {
		fmt.Fprintln(out, "⚠️  No stored entries")
		return
	}
	fmt.Fprintln(out, "📄 Stored entries:")
	for _, key := range sortedKeys(report.Entries) {
		fmt.Fprintf(out, "  %s: %s\n", key, report.Entries[key])
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "text", "Output format (text, json)")
}
