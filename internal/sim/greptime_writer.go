package sim

import (
	"context"
	"log/slog"

	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	ingesterContext "github.com/GreptimeTeam/greptimedb-ingester-go/context"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
)

const defaultResultTable = "asset_condition"

// GreptimeDBWriter writes month results to GreptimeDB via the ingester
// client, one time-series row per simulated month.
type GreptimeDBWriter struct {
	client greptime.Client
	db     string
	table  string
}

// NewGreptimeDBWriter creates a new GreptimeDB writer and auto-creates
// the result table if needed.
func NewGreptimeDBWriter(endpoint, database, tableName string) (*GreptimeDBWriter, error) {
	if tableName == "" {
		tableName = defaultResultTable
	}
	ctx := ingesterContext.NewContext(context.Background())
	client, err := greptime.NewClient(ctx, &greptime.Config{
		Endpoint: endpoint,
	})
	if err != nil {
		return nil, err
	}

	ddl := `
CREATE TABLE IF NOT EXISTS ` + tableName + ` (
  run_id STRING TAG,
  asset_id STRING TAG,
  month DOUBLE,
  year DOUBLE,
  condition DOUBLE,
  cumulative_degradation DOUBLE,
  failure_probability DOUBLE,
  risk_level STRING,
  maintenance_cost DOUBLE,
  ts TIMESTAMP TIME INDEX
) WITH (ttl='90d')
`
	if _, err := client.SQL(ctx, ddl); err != nil {
		return nil, err
	}

	return &GreptimeDBWriter{client: client, db: database, table: tableName}, nil
}

// Write inserts a single result row.
func (w *GreptimeDBWriter) Write(row ResultRow) error {
	return w.WriteBatch([]ResultRow{row})
}

// WriteBatch inserts multiple result rows.
func (w *GreptimeDBWriter) WriteBatch(rows []ResultRow) error {
	if len(rows) == 0 {
		return nil
	}

	ctx := ingesterContext.NewContext(context.Background())

	tbl := table.New(w.table)
	tbl.AddTagColumn("run_id", types.StringType, 0)
	tbl.AddTagColumn("asset_id", types.StringType, 0)
	tbl.AddFieldColumn("month", types.Float64Type)
	tbl.AddFieldColumn("year", types.Float64Type)
	tbl.AddFieldColumn("condition", types.Float64Type)
	tbl.AddFieldColumn("cumulative_degradation", types.Float64Type)
	tbl.AddFieldColumn("failure_probability", types.Float64Type)
	tbl.AddFieldColumn("risk_level", types.StringType)
	tbl.AddFieldColumn("maintenance_cost", types.Float64Type)
	tbl.SetTimeIndex("ts", types.TimestampType)

	for _, r := range rows {
		tbl.AppendTagValue("run_id", r.RunID)
		tbl.AppendTagValue("asset_id", r.AssetID)
		tbl.AppendFieldValue("month", float64(r.Month))
		tbl.AppendFieldValue("year", float64(r.Year))
		tbl.AppendFieldValue("condition", r.Condition)
		tbl.AppendFieldValue("cumulative_degradation", r.CumulativeDegradation)
		tbl.AppendFieldValue("failure_probability", r.FailureProbability)
		tbl.AppendFieldValue("risk_level", string(r.Risk))
		tbl.AppendFieldValue("maintenance_cost", r.MaintenanceCost)
		tbl.AppendTimeIndex(r.Timestamp)
	}

	if err := w.client.Write(ctx, w.db, []*table.Table{tbl}); err != nil {
		slog.Error("greptime write failed", "table", w.table, "err", err)
		return err
	}
	return nil
}
