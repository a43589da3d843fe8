package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/celerix-dev/viaticos/pkg/schema"
	"github.com/celerix-dev/viaticos/pkg/sdk"
	"golang.org/x/term"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		return
	}

	client, err := sdk.FromEnv()
	if err != nil {
		log.Fatalf("Failed to configure client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	command := strings.ToLower(os.Args[1])
	args := os.Args[2:]

	switch command {
	case "ping":
		if err := client.Ping(ctx); err != nil {
			log.Fatal(err)
		}
		fmt.Println("PONG")

	case "status":
		st, err := client.Status(ctx)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(st)

	case "sync":
		st, err := client.Sync(ctx)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Synced: %d users, %d trips, %d expenses\n", st.Users, st.Trips, st.Expenses)

	case "users":
		users, err := client.Users(ctx)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(users)

	case "add-user":
		if len(args) < 4 {
			log.Fatal("Usage: viaticos add-user <nombre> <email> <cargo> <departamento>")
		}
		u, err := client.AddUser(ctx, schema.NewUser{
			Nombre: args[0], Email: args[1], Cargo: args[2], Departamento: args[3],
		})
		if err != nil {
			log.Fatal(err)
		}
		printJSON(u)

	case "trips":
		f := schema.TripFilter{}
		if len(args) > 0 {
			f.Search = args[0]
		}
		trips, err := client.Trips(ctx, f)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(trips)

	case "expenses":
		f := schema.ExpenseFilter{}
		if len(args) > 0 {
			f.TripID = mustID(args[0])
		}
		expenses, err := client.Expenses(ctx, f)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(expenses)

	case "budget":
		if len(args) < 1 {
			log.Fatal("Usage: viaticos budget <userID>")
		}
		usage, err := client.UserBudget(ctx, mustID(args[0]))
		if err != nil {
			log.Fatal(err)
		}
		printJSON(usage)

	case "dashboard":
		summary, err := client.Dashboard(ctx)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(summary.Stats)

	case "export":
		var w io.Writer = os.Stdout
		if len(args) > 0 {
			f, err := os.Create(args[0])
			if err != nil {
				log.Fatal(err)
			}
			defer f.Close()
			w = f
		}
		if err := client.ExportTrips(ctx, schema.TripFilter{}, w); err != nil {
			log.Fatal(err)
		}

	case "notifications":
		notes, err := client.Notifications(ctx)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(notes)

	case "clear":
		if !(len(args) > 0 && args[0] == "-yes") && !confirm("Delete all local data? [y/N] ") {
			fmt.Println("Aborted")
			return
		}
		if err := client.ClearAllData(ctx); err != nil {
			log.Fatal(err)
		}
		fmt.Println("OK")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
	}
}

// confirm asks on an interactive terminal. Without one it refuses.
func confirm(prompt string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "Not a terminal; pass -yes to confirm")
		return false
	}
	fmt.Print(prompt)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes" || answer == "s" || answer == "si"
}

func mustID(s string) int {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		log.Fatalf("Invalid id %q", s)
	}
	return id
}

func printUsage() {
	fmt.Println("Viaticos CLI - Interface for viaticosd")
	fmt.Println("\nUsage:")
	fmt.Println("  viaticos ping")
	fmt.Println("  viaticos status")
	fmt.Println("  viaticos sync")
	fmt.Println("  viaticos users")
	fmt.Println("  viaticos add-user <nombre> <email> <cargo> <departamento>")
	fmt.Println("  viaticos trips [search]")
	fmt.Println("  viaticos expenses [viajeID]")
	fmt.Println("  viaticos budget <userID>")
	fmt.Println("  viaticos dashboard")
	fmt.Println("  viaticos export [file.tsv]")
	fmt.Println("  viaticos notifications")
	fmt.Println("  viaticos clear [-yes]")
	fmt.Println("\nEnvironment Variables:")
	fmt.Printf("  VIATICOS_API_ADDR    Address of the API (default: %s)\n", sdk.DefaultAddr)
}

func printJSON(v any) {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(bytes))
}
