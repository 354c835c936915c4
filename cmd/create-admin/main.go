// Command create-admin interactively creates a panel administrator account.
// It is the bootstrap path for a fresh install: run it once against the same
// DATABASE_URL the service uses, then log in through the web UI.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/mso328/headscale-ui/config"
	database "github.com/mso328/headscale-ui/internal/core"
	"github.com/mso328/headscale-ui/internal/core/repository"
	logicv1 "github.com/mso328/headscale-ui/internal/logic/v1"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}

	ctx := context.Background()

	if err := database.Migrate(ctx, cfg.Database.URL); err != nil {
		return err
	}
	pool, err := database.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	users := repository.NewUserRepository(pool)
	sessions := repository.NewSessionRepository(pool)
	hasher := logicv1.NewPasswordHasher(cfg.Auth.BcryptCost)
	// The issuer is unused by account creation but required by the service;
	// a throwaway secret is fine here.
	issuer, err := logicv1.NewTokenIssuer([]byte("create-admin"), cfg.GetSessionTTL())
	if err != nil {
		return err
	}
	auth := logicv1.NewAuthService(users, sessions, hasher, issuer)

	fmt.Println("=================================")
	fmt.Println("  Headscale UI - Create Admin")
	fmt.Println("=================================")
	fmt.Println()

	in := bufio.NewReader(os.Stdin)

	count, err := auth.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		fmt.Printf("Warning: there are already %d user(s) in the database.\n", count)
		answer, err := prompt(in, "Do you want to create another user? (yes/no): ")
		if err != nil {
			return err
		}
		answer = strings.ToLower(answer)
		if answer != "yes" && answer != "y" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	fmt.Println()
	fmt.Println("Create a new admin user:")
	fmt.Println()

	username, err := prompt(in, "Username: ")
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(username)) < 3 {
		return errors.New("username must be at least 3 characters long")
	}

	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters long")
	}

	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	user, err := auth.CreateUser(ctx, username, password)
	if err != nil {
		if errors.Is(err, logicv1.ErrUserExists) {
			return fmt.Errorf("username %q already exists", strings.TrimSpace(username))
		}
		return err
	}

	fmt.Println()
	fmt.Println("User created successfully!")
	fmt.Printf("   Username: %s\n", user.Username)
	fmt.Printf("   User ID:  %d\n", user.ID)
	fmt.Println()
	fmt.Println("You can now login with these credentials.")
	return nil
}

func prompt(in *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := in.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads without echoing so credentials never land in the
// terminal scrollback.
func promptPassword(label string) (string, error) {
	fmt.Print(label)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
