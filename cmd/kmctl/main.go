// Package main provides the key-manager admin CLI.
//
// Usage:
//
//	kmctl policy-put <app_id> [validity_days]  - Register or update an application's key policy
//	kmctl policy-get <app_id>                  - Show an application's key policy
//	kmctl aliases <app_id> [ref_id]            - List the alias windows for a scope
//
// Connection and defaults come from the same configuration the service reads
// (configs/config.yaml, .env, environment overrides). policy-put without an
// explicit validity_days uses key_manager.default_validity_days.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/r3e-network/keymanager/internal/domain/keypolicy"
	"github.com/r3e-network/keymanager/internal/keymanager"
	"github.com/r3e-network/keymanager/internal/platform/database"
	"github.com/r3e-network/keymanager/internal/platform/migrations"
	"github.com/r3e-network/keymanager/internal/storage/postgres"
	"github.com/r3e-network/keymanager/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fatalf("load config: %v", err)
	}

	dsn := cfg.Database.DSN
	if dsn == "" && cfg.Database.Host != "" {
		dsn = cfg.Database.ConnectionString()
	}
	db, err := database.Open(ctx, database.Config{DSN: dsn})
	if err != nil {
		fatalf("connect database: %v", err)
	}
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		if err := migrations.Apply(ctx, db); err != nil {
			fatalf("apply migrations: %v", err)
		}
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "policy-put":
		cmdPolicyPut(ctx, cfg, postgres.NewPolicyStore(db), args)
	case "policy-get":
		cmdPolicyGet(postgres.NewPolicyStore(db), args)
	case "aliases":
		cmdAliases(postgres.NewAliasIndex(db), args)
	default:
		printUsage()
		os.Exit(1)
	}
}

func cmdPolicyPut(ctx context.Context, cfg *config.Config, store *postgres.PolicyStore, args []string) {
	if len(args) < 1 {
		fatalf("usage: kmctl policy-put <app_id> [validity_days]")
	}
	app := args[0]

	days := cfg.KeyManager.DefaultValidityDays
	if len(args) > 1 {
		parsed, err := strconv.Atoi(args[1])
		if err != nil {
			fatalf("validity_days must be an integer: %v", err)
		}
		days = parsed
	}
	if days <= 0 {
		fatalf("validity_days must be positive, got %d", days)
	}

	actor := os.Getenv("USER")
	if actor == "" {
		actor = "kmctl"
	}
	err := store.Put(postgres.WithActor(ctx, actor), keypolicy.KeyPolicy{ApplicationID: app, ValidityDays: days})
	if err != nil {
		fatalf("put policy: %v", err)
	}
	fmt.Printf("policy for %s set to %d days\n", app, days)
}

func cmdPolicyGet(store *postgres.PolicyStore, args []string) {
	if len(args) < 1 {
		fatalf("usage: kmctl policy-get <app_id>")
	}
	policy, ok, err := store.Get(context.Background(), args[0])
	if err != nil {
		fatalf("get policy: %v", err)
	}
	if !ok {
		fatalf("no policy for application %s", args[0])
	}
	fmt.Printf("%s: %d days (updated %s by %s)\n",
		policy.ApplicationID, policy.ValidityDays,
		policy.UpdatedAt.Format(time.RFC3339), policy.UpdatedBy)
}

func cmdAliases(index *postgres.AliasIndex, args []string) {
	if len(args) < 1 {
		fatalf("usage: kmctl aliases <app_id> [ref_id]")
	}
	ref := ""
	if len(args) > 1 {
		ref = args[1]
	}

	rows, err := index.ListByScope(context.Background(), keymanager.NewScope(args[0], ref))
	if err != nil {
		fatalf("list aliases: %v", err)
	}
	if len(rows) == 0 {
		fmt.Println("no aliases for scope")
		return
	}
	for _, a := range rows {
		fmt.Printf("%s  %s .. %s\n", a.Alias,
			a.KeyGenerationTime.Format("2006-01-02T15:04:05"),
			a.KeyExpiryTime.Format("2006-01-02T15:04:05"))
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage:
  kmctl policy-put <app_id> [validity_days]
  kmctl policy-get <app_id>
  kmctl aliases <app_id> [ref_id]`)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
