package config

import "testing"

func TestLoad_RequiresBlockchainUpdatesURL(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("Load() with no env set should require blockchain_updates_url")
	}
}

func TestPostgres_DSN(t *testing.T) {
	p := Postgres{Host: "db", Port: 5432, Database: "bh", User: "u", Password: "p"}
	want := "postgres://u:p@db:5432/bh?sslmode=disable"
	if got := p.DSN(); got != want {
		t.Fatalf("DSN() = %q, want %q", got, want)
	}
}
