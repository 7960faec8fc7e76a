package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	pulse "github.com/Tap30/pulse-go"
	"github.com/Tap30/pulse-go/adapters"
)

var client *pulse.Client
var scanner *bufio.Scanner
var eventCounter int

func main() {
	scanner = bufio.NewScanner(os.Stdin)

	cfg := pulse.DefaultConfig()
	if len(os.Args) > 1 {
		loaded, err := pulse.LoadConfig(os.Args[1])
		if err != nil {
			fmt.Printf("❌ Failed to load config: %v\n", err)
			return
		}
		cfg = loaded
	}
	pulse.LoadFromEnv(&cfg)
	cfg.Platform = pulse.PlatformBrowser
	cfg.Adapters.Script = adapters.NewScriptWriter(os.Stdout)

	var err error
	client, err = pulse.NewClient(cfg)
	if err != nil {
		fmt.Printf("❌ Failed to create client: %v\n", err)
		return
	}
	defer client.Dispose()

	fmt.Println("🎯 Pulse Interactive Client")
	fmt.Println("Backend calls are printed as browser script statements")
	fmt.Println()

	for {
		showMenu()
		switch readInput("Choose an option: ") {
		case "1":
			initClient()
		case "2":
			trackEvent()
		case "3":
			trackInvalidEvent()
		case "4":
			identify()
		case "5":
			registerSuperProperty()
		case "6":
			updateProfile()
		case "7":
			updateGroup()
		case "8":
			queryState()
		case "9":
			flush()
		case "10":
			fmt.Println("👋 Goodbye!")
			return
		default:
			fmt.Println("❌ Invalid option. Please try again.")
		}
	}
}

func showMenu() {
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("🔄 Lifecycle")
	fmt.Println("1. Initialize Client")
	fmt.Println()
	fmt.Println("📊 Event Tracking")
	fmt.Println("2. Track Event")
	fmt.Println("3. Track Event with Blank Name")
	fmt.Println()
	fmt.Println("🏷️  Identity and Profiles")
	fmt.Println("4. Identify User")
	fmt.Println("5. Register Super Property")
	fmt.Println("6. Update People Profile")
	fmt.Println("7. Update Group Profile")
	fmt.Println("8. Query Distinct ID and Opt-out")
	fmt.Println()
	fmt.Println("9. Flush")
	fmt.Println("10. Exit")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}

func readInput(prompt string) string {
	fmt.Print(prompt)
	scanner.Scan()
	return strings.TrimSpace(scanner.Text())
}

// wait blocks until f settles and prints its state.
func wait[T any](label string, f *pulse.Future[T]) T {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	state := f.Wait(ctx)
	fmt.Printf("✅ %s: %s\n\n", label, state)
	return f.Get(ctx)
}

func initClient() {
	token := readInput("Project token: ")
	wait("initialize", client.Initialize(token, nil))
}

func trackEvent() {
	eventCounter++
	name := fmt.Sprintf("event_%d", eventCounter)
	wait("track "+name, client.Track(name, map[string]any{
		"index":  eventCounter,
		"sentAt": time.Now(),
		"tags":   []any{"playground", "demo"},
	}))
}

func trackInvalidEvent() {
	wait("track blank name (ignored, see log)", client.Track("  ", nil))
}

func identify() {
	wait("identify", client.Identify(readInput("Distinct ID: ")))
}

func registerSuperProperty() {
	key := readInput("Key: ")
	val := readInput("Value: ")
	wait("register", client.RegisterSuperProperties(map[string]any{key: val}))
}

func updateProfile() {
	people := client.GetPeople()
	people.Set(map[string]any{"name": readInput("Name: ")})
	wait("people increment", people.Increment(map[string]any{"visits": 1}))
}

func updateGroup() {
	group := client.GetGroup("company", readInput("Company ID: "))
	wait("group set", group.Set(map[string]any{"plan": "enterprise"}))
}

func queryState() {
	id := wait("distinct id", client.GetDistinctID())
	fmt.Printf("   distinct id = %q\n", id)
	opted := wait("opted out", client.HasOptedOutTracking())
	fmt.Printf("   opted out = %v\n\n", opted)
}

func flush() {
	wait("flush", client.Flush())
}
