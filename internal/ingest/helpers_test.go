package ingest

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"ecomstaging/internal/provision"
	"ecomstaging/internal/registry"
	"ecomstaging/internal/schema"
	"ecomstaging/internal/storage"
	_ "ecomstaging/internal/storage/sqlite"
)

const customersCSV = `customer_id,customer_unique_id,customer_zip_code_prefix,customer_city,customer_state
06b8999e2fba1a1fbc88172c00ba8bc7,861eff4711a542e4b93843c6dd7febb0,14409,franca,SP
18955e83d337fd6b2def6b18a428ac77,290c77bc529b7ac935b93aa66c333dc3,09790,sao bernardo do campo,SP
4e7b3e00288586ebd08712fdd0374a03,060e732b5b29e8181a18229c7b0b2b5e,01151,sao paulo,SP
`

const ordersCSV = `order_id,customer_id,order_status,order_purchase_timestamp,order_approved_at,order_delivered_carrier_date,order_delivered_customer_date,order_estimated_delivery_date
e481f51cbdc54678b7cc49136f2d6af7,9ef432eb6251297304e76186b10a928d,delivered,2017-10-02 10:56:33,2017-10-02 11:07:15,2017-10-04 19:55:00,2017-10-10 21:25:13,2017-10-18 00:00:00
136cce7faa42fdb2cefd53fdc79a6098,ed0271e0b7da060a393796590e7b737a,invoiced,2017-04-11 12:22:08,,,,2017-05-09 00:00:00
`

type harness struct {
	repo   storage.Repository
	check  *sql.DB
	loader *Loader
	hook   *logtest.Hook
	log    *logrus.Logger
	dir    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "staging.db")

	repo, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: dbPath, ConnectTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(repo.Close)

	check, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open check db: %v", err)
	}
	t.Cleanup(func() { _ = check.Close() })

	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	prov := provision.New(repo, log)

	return &harness{
		repo:   repo,
		check:  check,
		loader: NewLoader(repo, prov, "dbt_dev", log),
		hook:   hook,
		log:    log,
		dir:    t.TempDir(),
	}
}

func (h *harness) write(t *testing.T, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(h.dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func (h *harness) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	if err := h.check.QueryRow(`SELECT COUNT(*) FROM "` + table + `"`).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func spec(t *testing.T, table string) registry.DatasetSpec {
	t.Helper()
	s, ok := registry.Default().Lookup(table)
	if !ok {
		t.Fatalf("no dataset %s", table)
	}
	return s
}

// smallRegistry is a two-dataset catalog used by coordinator tests.
func smallRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r, err := registry.New(
		spec(t, "stg_customers"),
		spec(t, "stg_orders"),
		registry.DatasetSpec{
			SourceFile:  "olist_sellers_dataset.csv",
			TargetTable: "stg_sellers",
			Columns: []schema.Column{
				{Name: "seller_id", Type: schema.Text},
				{Name: "seller_state", Type: schema.Text},
			},
		},
	)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	return r
}
