package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"schoolattend/internal/auth"
	"schoolattend/internal/config"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	cfg config.App
	out io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  token -sub ID -role ROLE [-program P -year Y -section S] [-ttl DURATION] - print a signed access token")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenCmd.SetOutput(cli.out)
	sub := tokenCmd.String("sub", "", "Person or service id the token is issued for.")
	role := tokenCmd.String("role", "", "One of admin, teacher, student, captain.")
	program := tokenCmd.String("program", "", "Class program, for students and captains.")
	year := tokenCmd.String("year", "", "Class year level.")
	section := tokenCmd.String("section", "", "Class section.")
	ttl := tokenCmd.Duration("ttl", cli.cfg.TokenTTL, "Token lifetime.")

	switch args[1] {
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if strings.TrimSpace(*sub) == "" || !validRole(*role) || *ttl <= 0 {
			tokenCmd.Usage()
			return errHelp
		}
		if *role == auth.RoleCaptain && *program == "" {
			fmt.Fprintln(cli.out, "a captain token needs -program, -year and -section")
			return errHelp
		}
		return cli.token(auth.Identity{
			Subject: strings.TrimSpace(*sub),
			Role:    *role,
			Program: *program,
			Year:    *year,
			Section: *section,
		}, *ttl)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) token(id auth.Identity, ttl time.Duration) error {
	tok, err := auth.Issue(id, cli.cfg.JWTIssuer, cli.cfg.JWTSigningKey, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, tok.Value)
	fmt.Fprintf(cli.out, "expires %s\n", tok.ExpiresAt.UTC().Format(time.RFC3339))
	return nil
}

func validRole(role string) bool {
	switch role {
	case auth.RoleAdmin, auth.RoleTeacher, auth.RoleStudent, auth.RoleCaptain:
		return true
	}
	return false
}
