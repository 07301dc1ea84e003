package main

import (
	"bufio"
	"database/sql"
	"flag"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/gitpan/txnpool"
	"github.com/gitpan/txnpool/config"
	"github.com/gitpan/txnpool/metrics"
)

func main() {
	configPath := flag.String("config", "config.ini", "Path to configuration file")
	metricsAddr := flag.String("metrics", ":9090", "Metrics endpoint address")
	query := flag.String("query", "", "Statement to execute per input row, with driver placeholders")
	flag.Parse()

	if *query == "" {
		log.Fatal("Usage: txnloader -query 'INSERT INTO t (a, b) VALUES (?, ?)' < rows.tsv")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize metrics
	metrics.Init()

	// Start metrics HTTP server with pprof
	go func() {
		http.Handle("/metrics", metrics.Handler())
		log.Printf("Metrics endpoint at http://localhost%s/metrics", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	pool, err := txnpool.New(txnpool.Config[[]any]{
		Conn: txnpool.WrapDB(db),
		ItemFunc: func(p *txnpool.Pool[[]any], row []any) error {
			_, err := p.Tx().Exec(*query, row...)
			return err
		},
		Capacity:     cfg.Pool.Capacity,
		MaxDeadlocks: cfg.Pool.MaxDeadlocks,
		Backoff:      time.Duration(cfg.Pool.BackoffMs) * time.Millisecond,
		Classifier:   classifierFor(cfg.Database.Driver),
		Name:         "txnloader",
	})
	if err != nil {
		log.Fatalf("Failed to create pool: %v", err)
	}

	// Read tab-separated rows from stdin, one statement execution per line
	rows := 0
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		row := make([]any, len(fields))
		for i, f := range fields {
			row[i] = f
		}
		if err := pool.Add(row); err != nil {
			log.Fatalf("Row %d failed: %v", rows+1, err)
		}
		rows++
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}

	if err := pool.Finish(); err != nil {
		log.Fatalf("Final flush failed: %v", err)
	}

	log.Printf("Loaded %d rows (%d deadlocks recovered)", rows, pool.Deadlocks())
}

func classifierFor(driver string) txnpool.Classifier {
	switch driver {
	case "mysql":
		return txnpool.MySQLDeadlocks
	case "postgres":
		return txnpool.PostgresDeadlocks
	default:
		return txnpool.DeadlockErrors
	}
}
