package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/trezcool/autograder/core"
	"github.com/trezcool/autograder/core/quiz"
)

var (
	isTerminalFunc = term.IsTerminal // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf *core.Config
	out  io.Writer
	db   *sql.DB       // nil when the command needs no database
	svc  *quiz.Service // nil when the command needs no database
}

// needsDB reports whether the command in args works on the app database.
func needsDB(args []string) bool {
	if len(args) < 2 {
		return false
	}
	switch args[1] {
	case "migrate", "importquiz", "results":
		return true
	}
	return false
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  createdb                                  - create the app database user & database")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                    - run a goose migration command (up, down, status...)")
	fmt.Fprintln(cli.out, "  importquiz -file FILE -author ID          - author a quiz from a YAML file")
	fmt.Fprintln(cli.out, "  results -quiz ID [-format table|json]     - print the graded submissions of a quiz, best first")
	fmt.Fprintln(cli.out, "  token -sub ID -role ROLE [-email] [-name] - issue an API token")
}

func (cli *commandLine) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	importCmd := cli.flagSet("importquiz")
	importFile := importCmd.String("file", "", "Path of the YAML quiz definition.")
	importAuthor := importCmd.String("author", "", "ID of the quiz author.")

	resultsCmd := cli.flagSet("results")
	resultsQuiz := resultsCmd.String("quiz", "", "ID of the quiz.")
	resultsFormat := resultsCmd.String("format", "", "Output format: table or json (default: table on a terminal, json otherwise).")

	tokenCmd := cli.flagSet("token")
	tokenSub := tokenCmd.String("sub", "", "ID of the user.")
	tokenEmail := tokenCmd.String("email", "", "E-mail of the user, for result notifications.")
	tokenName := tokenCmd.String("name", "", "Name of the user.")
	tokenTTL := tokenCmd.Duration("ttl", 24*time.Hour, "Validity of the token.")
	var tokenRoles stringList
	tokenCmd.Var(&tokenRoles, "role", fmt.Sprintf("Role of the user, repeatable. One of %v.", core.AllRoles))

	switch args[1] {
	case "createdb":
		return cli.createDB()
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "importquiz":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importFile == "" || *importAuthor == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importQuiz(*importFile, *importAuthor)
	case "results":
		if err := resultsCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resultsQuiz == "" {
			resultsCmd.Usage()
			return errHelp
		}
		format := *resultsFormat
		if format == "" {
			format = formatJSON
			if f, ok := cli.out.(*os.File); ok && isTerminalFunc(int(f.Fd())) {
				format = formatTable
			}
		}
		return cli.results(*resultsQuiz, format)
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenSub == "" || len(tokenRoles) == 0 {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenSub, *tokenEmail, *tokenName, tokenRoles, *tokenTTL)
	default:
		cli.printUsage()
		return errHelp
	}
}

// stringList is a repeatable string flag.
type stringList []string

func (l *stringList) String() string {
	return fmt.Sprint([]string(*l))
}

func (l *stringList) Set(s string) error {
	*l = append(*l, s)
	return nil
}
