package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// execIface is the command surface the REPL dispatches to. *App satisfies
// it; tests can provide a stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	listCategories(ctx context.Context) error
	addCategory(ctx context.Context) error
	listTransactions(ctx context.Context) error
	addTransaction(ctx context.Context) error
	deleteTransaction(ctx context.Context) error
	listGoals(ctx context.Context) error
	contribute(ctx context.Context) error
	listChat(ctx context.Context) error
	say(ctx context.Context) error
}

const helpLoggedOut = "Available commands: login, exit"
const helpLoggedIn = "Available commands: categories, addcat, transactions, addtx, deltx, " +
	"goals, contribute, chat, say, logout, exit"

// runREPL reads lines from scanner, parses the first token as the command,
// and dispatches to a. Unknown commands are reported back. The loop exits on
// EOF or when the user types "exit" or "quit". Handler errors are already
// reported to the user by the handlers; the loop keeps going.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner, w io.Writer) {
	for {
		fmt.Fprintf(w, "ft %s> ", statusFn())
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		if cmd == "exit" || cmd == "quit" {
			fmt.Fprintln(w, "Bye!")
			return
		}

		if !a.isLoggedIn() {
			switch cmd {
			case "help":
				fmt.Fprintln(w, helpLoggedOut)
			case "login":
				_ = a.Login(ctx)
			default:
				fmt.Fprintln(w, "Unknown command. "+helpLoggedOut)
			}
			continue
		}

		switch cmd {
		case "help":
			fmt.Fprintln(w, helpLoggedIn)
		case "login":
			_ = a.Login(ctx)
		case "logout":
			_ = a.Logout(ctx)
		case "categories":
			_ = a.listCategories(ctx)
		case "addcat":
			_ = a.addCategory(ctx)
		case "transactions":
			_ = a.listTransactions(ctx)
		case "addtx":
			_ = a.addTransaction(ctx)
		case "deltx":
			_ = a.deleteTransaction(ctx)
		case "goals":
			_ = a.listGoals(ctx)
		case "contribute":
			_ = a.contribute(ctx)
		case "chat":
			_ = a.listChat(ctx)
		case "say":
			_ = a.say(ctx)
		default:
			fmt.Fprintln(w, "Unknown command. "+helpLoggedIn)
		}
	}
}

func (a *App) getStatus() string {
	if !a.isLoggedIn() {
		return "(signed out)"
	}
	mode := "offline"
	if a.monitor.Online() {
		mode = "online"
	}
	return fmt.Sprintf("(%s %s)", a.sess.Owner, mode)
}

// Run starts the interactive loop. It prompts for login first and watches
// connectivity changes in the background.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to FinTrack (type 'help' for commands)")

	_ = a.Login(ctx)
	go a.watchConnectivity(ctx)

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(os.Stdin), a.out)
}

// watchConnectivity announces reachability transitions as they happen.
func (a *App) watchConnectivity(ctx context.Context) {
	ch, stop := a.monitor.Subscribe()
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return
		case online, ok := <-ch:
			if !ok {
				return
			}
			if online {
				fmt.Fprintln(a.out, "Back online")
			} else {
				fmt.Fprintln(a.out, "Connection lost, changes are disabled until it returns")
			}
		}
	}
}
