package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Cards(ctx context.Context) error
	AddCard(ctx context.Context) error
	Transactions(ctx context.Context) error
	More(ctx context.Context) error
	AddTransaction(ctx context.Context) error
	Remove(ctx context.Context, id string) error
	Summary(ctx context.Context) error
	Sync(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the cardsync CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Prompt & Commands
//
//	Not logged in:
//	  - help           — show available commands
//	  - login          — authenticate against the backend
//	  - exit | quit    — leave the program
//
//	Logged in:
//	  - cards          — list credit cards
//	  - addcard        — add a credit card
//	  - tx             — list transactions, newest first (first page)
//	  - more           — load the next page of transactions
//	  - addtx          — add a transaction
//	  - del <id>       — delete a record
//	  - summary        — card balance / limit / utilization totals
//	  - sync           — push pending changes now
//	  - logout         — log out and drop the stored session
//	  - exit | quit    — leave the program
//
// Any errors returned by command handlers are printed here; handlers stay
// free of REPL concerns.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("cardsync %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: cards, addcard, tx, more, addtx, del <id>, summary, sync, logout, exit")
			} else {
				printlnFn("Available commands: login, exit")
			}

		case "login":
			err = a.Login(ctx)

		case "logout":
			err = a.Logout(ctx)

		case "cards":
			err = a.Cards(ctx)

		case "addcard":
			err = a.AddCard(ctx)

		case "tx", "transactions":
			err = a.Transactions(ctx)

		case "more":
			err = a.More(ctx)

		case "addtx":
			err = a.AddTransaction(ctx)

		case "del", "delete":
			if len(args) == 0 {
				printlnFn("Usage: del <id>")
				continue
			}
			err = a.Remove(ctx, args[0])

		case "summary":
			err = a.Summary(ctx)

		case "sync":
			err = a.Sync(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err.Error())
		}
	}
}
