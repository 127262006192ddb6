package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/georiviere/georiviere-api/internal/config"
	"github.com/georiviere/georiviere-api/internal/db"
	"github.com/georiviere/georiviere-api/internal/logger"
	"github.com/georiviere/georiviere-api/internal/river"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Expected columns: name,wkt[,data_source,classification_water_policy,flow]
// with wkt a LINESTRING or MULTILINESTRING in WGS84.

type options struct {
	csvPath     string
	dsn         string
	schema      string
	dryRun      bool
	wipe        bool
	confirm     bool
	advisoryKey int64
}

var (
	errNoCSV       = errors.New("--csv is required")
	errUnconfirmed = errors.New("refusing to wipe without --confirm, add --dry-run to preview")
	errNoDatabase  = errors.New("no database: pass --dsn or set DATABASE_URL")
)

func main() {
	_ = godotenv.Load(".env.local")

	var o options
	flag.StringVar(&o.csvPath, "csv", "", "stream CSV to import (required)")
	flag.StringVar(&o.dsn, "dsn", os.Getenv("DATABASE_URL"), "Postgres connection string, defaults to $DATABASE_URL")
	flag.StringVar(&o.schema, "schema", config.DefaultSchema, "schema holding the GeoRiviere tables")
	flag.BoolVar(&o.dryRun, "dry-run", false, "parse the CSV and list the streams without touching the database")
	flag.BoolVar(&o.wipe, "wipe", false, "delete every existing stream before importing")
	flag.BoolVar(&o.confirm, "confirm", false, "confirm --wipe")
	flag.Int64Var(&o.advisoryKey, "advisory-lock", 0, "hold pg_advisory_lock(key) during the import, 0 disables it")
	flag.Parse()
	logger.Init(os.Stderr, "info", "text")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	err := run(ctx, o, os.Stdout)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

// run returns instead of exiting so the deferred unlock and Close always
// happen.
func run(ctx context.Context, o options, out io.Writer) error {
	if o.csvPath == "" {
		return errNoCSV
	}
	rows, err := readRows(o.csvPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Loaded %d streams from %s\n", len(rows), o.csvPath)

	if o.dryRun {
		for _, r := range rows {
			fmt.Fprintf(out, "  %-40s %s\n", r.Name, r.Flow)
		}
		fmt.Fprintln(out, "dry run, nothing written")
		return nil
	}
	if o.wipe && !o.confirm {
		return errUnconfirmed
	}
	if o.dsn == "" {
		return errNoDatabase
	}

	sqlDB, err := sql.Open("pgx", o.dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer sqlDB.Close()
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	if o.advisoryKey != 0 {
		unlock, err := advisoryLock(ctx, sqlDB, o.advisoryKey)
		if err != nil {
			return err
		}
		defer unlock()
	}

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:         logger.Gorm("warn"),
		NamingStrategy: schema.NamingStrategy{TablePrefix: o.schema + "."},
	})
	if err != nil {
		return fmt.Errorf("gorm: %w", err)
	}
	if err := db.EnsureSchema(gdb, o.schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	db.DB = gdb.WithContext(ctx)
	river.Init()

	n, err := river.Import(db.DB, rows, river.ImportOptions{Wipe: o.wipe})
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	fmt.Fprintf(out, "✅ Imported %d streams\n", n)
	return nil
}

func readRows(path string) ([]river.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	rows, err := river.ParseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return rows, nil
}

// advisoryLock holds the lock on a reserved connection until unlock runs.
func advisoryLock(ctx context.Context, sqlDB *sql.DB, key int64) (func(), error) {
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("reserve lock connection: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, key); err != nil {
		conn.Close()
		return nil, fmt.Errorf("advisory lock: %w", err)
	}
	return func() {
		if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, key); err != nil {
			logger.Module("stream-import").Warn("advisory unlock", "key", key, "error", err)
		}
		conn.Close()
	}, nil
}
