package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/autograder/apps/api/echo"
	"github.com/trezcool/autograder/core"
	"github.com/trezcool/autograder/core/quiz"
	"github.com/trezcool/autograder/storage/database/dummy"
	"github.com/trezcool/autograder/tests"
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	conf := testutil.Config()

	// set up DB & repos
	db, err := dummydb.Open()
	require.NoError(t, err)
	svc, err := quiz.NewService(dummydb.NewQuizRepository(db), conf, testutil.NopLogger{})
	require.NoError(t, err)

	// start CLI
	var out bytes.Buffer
	return &commandLine{conf: conf, out: &out, svc: svc}, &out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func checkRun(t *testing.T, cli *commandLine, tt cliTest) {
	args := append([]string{"admin"}, tt.args...)
	if err := cli.run(args); err != nil {
		if tt.wantErr != nil {
			if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		} else if tt.wantErrStr != "" {
			if !strings.Contains(err.Error(), tt.wantErrStr) {
				t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
			}
		} else {
			t.Errorf("cli.run() unexpected error = %v", err)
		}
	} else if tt.wantErr != nil || tt.wantErrStr != "" {
		t.Errorf("cli.run() error = nil, wantErr %v%s", tt.wantErr, tt.wantErrStr)
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, out := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkRun(t, cli, tt)
		})
	}
	assert.Contains(t, out.String(), "importquiz -file FILE -author ID")
}

func Test_needsDB(t *testing.T) {
	assert.False(t, needsDB([]string{"admin"}))
	assert.False(t, needsDB([]string{"admin", "createdb"}))
	assert.False(t, needsDB([]string{"admin", "token"}))
	assert.True(t, needsDB([]string{"admin", "migrate", "up"}))
	assert.True(t, needsDB([]string{"admin", "results", "-quiz", "q"}))
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	orig := gooseRunFunc
	defer func() { gooseRunFunc = orig }()
	gooseRunFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "grade_scale", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkRun(t, cli, tt)
		})
	}
}

func Test_commandLine_createDB(t *testing.T) {
	cli, _ := setup(t)

	orig := createDBFunc
	defer func() { createDBFunc = orig }()
	var gotConf *core.Config
	createDBFunc = func(_ context.Context, conf *core.Config) error {
		gotConf = conf
		return nil
	}

	checkRun(t, cli, cliTest{args: []string{"createdb"}})
	assert.Same(t, cli.conf, gotConf)
}

const capitalsYAML = `title: Capitals
time_limit_minutes: 10
questions:
  - text: Capital of Kenya?
    options: [Nairobi, Mombasa]
    correct_option_index: 0
  - text: Capital of DRC?
    options: [Goma, Lubumbashi, Kinshasa]
    correct_option_index: 2
`

func writeFile(t *testing.T, name, content string) string {
	fp := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(fp, []byte(content), 0o600))
	return fp
}

func Test_commandLine_importQuiz(t *testing.T) {
	cli, out := setup(t)

	valid := writeFile(t, "capitals.yaml", capitalsYAML)
	invalid := writeFile(t, "invalid.yaml", strings.Replace(capitalsYAML, "correct_option_index: 2", "correct_option_index: 3", 1))
	unknownKey := writeFile(t, "unknown.yaml", capitalsYAML+"answer_key: [0, 2]\n")

	tests := []cliTest{
		{name: "no args", args: []string{"importquiz"}, wantErr: errHelp},
		{name: "no author", args: []string{"importquiz", "-file", valid}, wantErr: errHelp},
		{name: "missing file", args: []string{"importquiz", "-file", "nope.yaml", "-author", "teacher-1"}, wantErrStr: "reading quiz file"},
		{name: "unknown key", args: []string{"importquiz", "-file", unknownKey, "-author", "teacher-1"}, wantErrStr: "parsing quiz file"},
		{name: "invalid quiz", args: []string{"importquiz", "-file", invalid, "-author", "teacher-1"}, wantErrStr: "invalid quiz"},
		{name: "imported", args: []string{"importquiz", "-file", valid, "-author", "teacher-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkRun(t, cli, tt)
		})
	}
	assert.Contains(t, out.String(), "questions[1].correct_option_index: ")
	assert.Contains(t, out.String(), `quiz "Capitals" imported: `)

	qs, err := cli.svc.Query(context.Background(), quiz.QueryFilter{AuthorID: "teacher-1"})
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, quiz.Ints(0, 2), qs[0].AnswerKey())
	assert.Equal(t, 10, qs[0].TimeLimitMinutes)
}

func Test_commandLine_results(t *testing.T) {
	cli, out := setup(t)
	ctx := context.Background()

	q, err := cli.svc.Create(ctx, "teacher-1", testutil.NewQuiz("Capitals", 0, 1))
	require.NoError(t, err)
	for resp, answers := range map[string]quiz.Answers{
		"ann": quiz.Ints(0, 0),
		"bob": quiz.Ints(0, 1),
	} {
		_, err := cli.svc.Submit(ctx, q.ID, quiz.Respondent{ID: resp}, answers)
		require.NoError(t, err)
	}

	checkRun(t, cli, cliTest{name: "no quiz", args: []string{"results"}, wantErr: errHelp})
	checkRun(t, cli, cliTest{name: "unknown quiz", args: []string{"results", "-quiz", "nope"}, wantErr: quiz.ErrNotFound})
	checkRun(t, cli, cliTest{name: "unknown format", args: []string{"results", "-quiz", q.ID, "-format", "xml"}, wantErrStr: `unknown format "xml"`})

	t.Run("json when not a terminal", func(t *testing.T) {
		out.Reset()
		checkRun(t, cli, cliTest{args: []string{"results", "-quiz", q.ID}})

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 2)
		var best quiz.GradedSubmission
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &best))
		assert.Equal(t, "bob", best.RespondentID)
		assert.Equal(t, 100.0, best.Result.ScorePercent)
	})

	t.Run("table", func(t *testing.T) {
		out.Reset()
		checkRun(t, cli, cliTest{args: []string{"results", "-quiz", q.ID, "-format", "table"}})

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 3)
		assert.True(t, strings.HasPrefix(lines[0], "RESPONDENT"))
		assert.Regexp(t, `^bob\s+100\.0%\s+2/2\s+A\s+explicit`, lines[1])
		assert.Regexp(t, `^ann\s+50\.0%\s+1/2\s+F\s+explicit`, lines[2])
	})
}

func Test_commandLine_token(t *testing.T) {
	cli, out := setup(t)

	tests := []cliTest{
		{name: "no args", args: []string{"token"}, wantErr: errHelp},
		{name: "no role", args: []string{"token", "-sub", "teacher-1"}, wantErr: errHelp},
		{name: "unknown role", args: []string{"token", "-sub", "teacher-1", "-role", "janitor"}, wantErrStr: `unknown role "janitor"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkRun(t, cli, tt)
		})
	}

	out.Reset()
	checkRun(t, cli, cliTest{args: []string{"token", "-sub", "teacher-1", "-role", core.RoleTeacher, "-role", core.RoleAdminOwner, "-email", "t@test.test"}})

	claims := new(echoapi.Claims)
	_, err := jwt.ParseWithClaims(strings.TrimSpace(out.String()), claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cli.conf.SecretKey), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", claims.Subject)
	assert.Equal(t, "t@test.test", claims.Email)
	assert.Equal(t, []string{core.RoleTeacher, core.RoleAdminOwner}, claims.Roles)
	assert.True(t, claims.CanAuthor())
}
