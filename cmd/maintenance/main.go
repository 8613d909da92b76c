// Command maintenance is an offline janitor for the users table. It clears
// expired verification codes, elapsed lockouts and stale password reset
// tokens so abandoned flows do not linger in the database.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"

	"github.com/yourusername/account-api/internal/config"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report what would be cleared without writing")
	flag.Parse()

	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("[Maintenance] failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Fatalf("[Maintenance] failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("[Maintenance] failed to ping database: %v", err)
	}

	steps := []struct {
		name  string
		where string
		set   string
	}{
		{
			name:  "expired verification codes",
			where: "verification_code IS NOT NULL AND verification_code_expires_at < NOW()",
			set:   "verification_code = NULL, verification_code_expires_at = NULL, verification_attempts = 0",
		},
		{
			name:  "elapsed verification locks",
			where: "verification_locked_until IS NOT NULL AND verification_locked_until < NOW()",
			set:   "verification_locked_until = NULL",
		},
		{
			name:  "expired password reset tokens",
			where: "password_reset_token IS NOT NULL AND password_reset_expires_at < NOW()",
			set:   "password_reset_token = NULL, password_reset_expires_at = NULL",
		},
	}

	for _, step := range steps {
		if *dryRun {
			var count int64
			query := fmt.Sprintf("SELECT COUNT(*) FROM users WHERE %s", step.where)
			if err := db.QueryRow(query).Scan(&count); err != nil {
				log.Fatalf("[Maintenance] failed to count %s: %v", step.name, err)
			}
			log.Printf("[Maintenance] dry-run: %d rows with %s", count, step.name)
			continue
		}

		query := fmt.Sprintf("UPDATE users SET %s, updated_at = NOW() WHERE %s", step.set, step.where)
		res, err := db.Exec(query)
		if err != nil {
			log.Fatalf("[Maintenance] failed to clear %s: %v", step.name, err)
		}
		affected, _ := res.RowsAffected()
		log.Printf("[Maintenance] cleared %s on %d rows", step.name, affected)
	}

	log.Println("[Maintenance] done")
}
