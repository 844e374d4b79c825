// Command bootstrap-admin seeds or updates an administrator account in the
// datastore.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"photovault/internal/models"
	"photovault/internal/storage"
)

func main() {
	var (
		postgresDSN string
		username    string
		password    string
	)

	flag.StringVar(&postgresDSN, "postgres-dsn", "", "Postgres connection string")
	flag.StringVar(&username, "username", "admin", "Username for the admin account")
	flag.StringVar(&password, "password", "", "Password for the admin account")
	flag.Parse()

	if strings.TrimSpace(postgresDSN) == "" {
		postgresDSN = strings.TrimSpace(os.Getenv("PHOTOVAULT_POSTGRES_DSN"))
	}
	if postgresDSN == "" {
		fatalf("--postgres-dsn or PHOTOVAULT_POSTGRES_DSN must be provided")
	}
	if strings.TrimSpace(username) == "" {
		fatalf("--username cannot be empty")
	}
	if len(password) < 8 {
		fatalf("--password must be at least 8 characters")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := storage.NewPostgres(ctx, storage.PostgresConfig{DSN: postgresDSN})
	if err != nil {
		fatalf("open datastore: %v", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		_ = repo.Close(closeCtx)
	}()

	username = strings.TrimSpace(username)

	user, created, err := bootstrapAdmin(ctx, repo, username, password)
	if err != nil {
		fatalf("bootstrap admin: %v", err)
	}

	state := "updated"
	if created {
		state = "created"
	}
	fmt.Printf("Admin user %s (id %d) %s successfully.\n", user.Username, user.ID, state)
	fmt.Println("Remember to rotate this password after the first login.")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func bootstrapAdmin(ctx context.Context, repo storage.Repository, username, password string) (models.User, bool, error) {
	users, err := repo.ListUsers(ctx)
	if err != nil {
		return models.User{}, false, err
	}
	for _, existing := range users {
		if strings.EqualFold(existing.Username, username) {
			updated, err := updateAdmin(ctx, repo, existing, password)
			return updated, false, err
		}
	}

	user, err := repo.CreateUser(ctx, storage.CreateUserParams{
		Username: username,
		Password: password,
		Roles:    []string{models.RoleAdmin},
	})
	if err != nil {
		return models.User{}, false, err
	}
	return user, true, nil
}

func updateAdmin(ctx context.Context, repo storage.Repository, existing models.User, password string) (models.User, error) {
	roles := ensureAdminRole(existing.Roles)

	update := storage.UserUpdate{Password: &password}
	if !equalStringSlices(existing.Roles, roles) {
		update.Roles = roles
	}

	if err := repo.UpdateUser(ctx, existing.ID, update); err != nil {
		return models.User{}, err
	}
	return repo.GetUser(ctx, existing.ID)
}

func ensureAdminRole(existing []string) []string {
	seen := make(map[string]struct{})
	for _, role := range existing {
		trimmed := strings.TrimSpace(role)
		if trimmed == "" {
			continue
		}
		seen[strings.ToLower(trimmed)] = struct{}{}
	}
	seen[models.RoleAdmin] = struct{}{}
	roles := make([]string, 0, len(seen))
	for role := range seen {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
