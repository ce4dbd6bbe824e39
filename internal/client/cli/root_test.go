package cli

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// stubExec records which commands the REPL dispatched.
type stubExec struct {
	loggedIn bool
	calls    []string
}

func (s *stubExec) record(name string) error {
	s.calls = append(s.calls, name)
	return nil
}

func (s *stubExec) isLoggedIn() bool                        { return s.loggedIn }
func (s *stubExec) Login(ctx context.Context) error         { return s.record("login") }
func (s *stubExec) Logout(ctx context.Context) error        { return s.record("logout") }
func (s *stubExec) listCategories(context.Context) error    { return s.record("categories") }
func (s *stubExec) addCategory(context.Context) error       { return s.record("addcat") }
func (s *stubExec) listTransactions(context.Context) error  { return s.record("transactions") }
func (s *stubExec) addTransaction(context.Context) error    { return s.record("addtx") }
func (s *stubExec) deleteTransaction(context.Context) error { return s.record("deltx") }
func (s *stubExec) listGoals(context.Context) error         { return s.record("goals") }
func (s *stubExec) contribute(context.Context) error        { return s.record("contribute") }
func (s *stubExec) listChat(context.Context) error          { return s.record("chat") }
func (s *stubExec) say(context.Context) error               { return s.record("say") }

func runScript(t *testing.T, exec *stubExec, script string) string {
	t.Helper()
	var out bytes.Buffer
	scanner := bufio.NewScanner(strings.NewReader(script))
	runREPL(context.Background(), exec, func() string { return "(test)" }, scanner, &out)
	return out.String()
}

func TestREPL_DispatchLoggedIn(t *testing.T) {
	exec := &stubExec{loggedIn: true}
	out := runScript(t, exec, "categories\ntransactions\naddtx\ngoals\nchat\nexit\n")

	assert.Equal(t, []string{"categories", "transactions", "addtx", "goals", "chat"}, exec.calls)
	assert.Contains(t, out, "Bye!")
}

func TestREPL_LoggedOutOnlyLogin(t *testing.T) {
	exec := &stubExec{loggedIn: false}
	out := runScript(t, exec, "transactions\nlogin\nexit\n")

	assert.Equal(t, []string{"login"}, exec.calls, "data commands must not dispatch while signed out")
	assert.Contains(t, out, "Unknown command")
}

func TestREPL_UnknownCommand(t *testing.T) {
	exec := &stubExec{loggedIn: true}
	out := runScript(t, exec, "frobnicate\nexit\n")

	assert.Empty(t, exec.calls)
	assert.Contains(t, out, "Unknown command")
}

func TestREPL_BlankLinesIgnored(t *testing.T) {
	exec := &stubExec{loggedIn: true}
	runScript(t, exec, "\n\n   \nhelp\nexit\n")

	assert.Empty(t, exec.calls)
}

func TestREPL_ExitsOnEOF(t *testing.T) {
	exec := &stubExec{loggedIn: true}
	out := runScript(t, exec, "help\n")

	assert.Contains(t, out, "Available commands")
}
