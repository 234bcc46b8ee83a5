// ABOUTME: Terminal host for the widget runtime
// ABOUTME: Mounts the widget into the terminal and maps slash commands to runtime calls

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/coven-widget/internal/config"
	"github.com/2389/coven-widget/internal/eventbus"
	"github.com/2389/coven-widget/internal/input"
	"github.com/2389/coven-widget/internal/kvstore"
	"github.com/2389/coven-widget/internal/lifecycle"
	"github.com/2389/coven-widget/internal/logging"
	"github.com/2389/coven-widget/internal/render"
)

const helpText = `Commands:
  <text>            send a message
  /open /close      open or close the panel
  /toggle           click the launcher
  /chat             footer shortcut to the conversation
  /back             return to the menu
  /option ID        pick a menu option
  /attach PATH      stage a file
  /detach           remove the staged file
  /voice CLIP       transcribe an audio clip and send it
  /mute             toggle the reply chime
  /dismiss          dismiss the current notice
  /reload           reload tenant configuration
  /hide /show       simulate the page being hidden or shown
  /leave            simulate exit intent
  /screen           print the whole widget
  /quit             exit`

// clipQueue hands audio clip paths from the prompt to the recognizer.
type clipQueue chan string

func (q clipQueue) next(ctx context.Context) (string, error) {
	select {
	case path := <-q:
		return path, nil
	case <-ctx.Done():
		return "", ctx.Err()
	default:
		return "", errors.New("no clip queued")
	}
}

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to the host config file")
	key := flag.String("key", "", "Tenant public key (overrides widget.public_key)")
	apiBase := flag.String("api", "", "API base URL (overrides widget.api_base)")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: reading .env: %v\n", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, *key, *apiBase); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func run(ctx context.Context, configPath, key, apiBase string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if key != "" {
		cfg.Widget.PublicKey = key
	}
	if apiBase != "" {
		cfg.Widget.APIBase = apiBase
	}

	// Logs go to stderr so they do not interleave with the conversation.
	logger := logging.Setup(cfg.Logging, os.Stderr)

	store, err := kvstore.FromConfig(cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	client := httpClient(cfg.Widget.RequestTimeout)

	clips := make(clipQueue, 1)
	var recognizer input.Recognizer = input.UnsupportedRecognizer{}
	if cfg.Speech.OpenAIAPIKey != "" {
		recognizer = input.NewWhisperRecognizer(cfg.Speech.OpenAIAPIKey, cfg.Speech.BaseURL, cfg.Speech.Model, client, clips.next)
	}

	host := newTerminalHost(color.Output)
	bus := eventbus.New(logger)
	defer bus.Close()

	rt, err := lifecycle.New(lifecycle.Options{
		TenantKey:       cfg.Widget.PublicKey,
		APIBaseOverride: cfg.Widget.APIBase,
		Origin:          cfg.Widget.Origin,
		Host:            host,
		Bus:             bus,
		Store:           store,
		HTTPClient:      client,
		Recognizer:      recognizer,
		Cuer:            bell{out: os.Stdout},
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("creating runtime: %w", err)
	}

	gray := color.New(color.FgHiBlack)
	gray.Printf("widget-tui: tenant %s via %s\n", rt.TenantKey(), rt.APIBase())
	gray.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	if err := rt.Start(ctx); err != nil {
		return fmt.Errorf("starting runtime: %w", err)
	}
	defer rt.Stop()

	return repl(ctx, os.Stdin, rt, bus, clips)
}

func repl(ctx context.Context, in io.Reader, rt *lifecycle.Runtime, bus *eventbus.Bus, clips clipQueue) error {
	scanner := bufio.NewScanner(in)
	lines := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			errCh <- err
			return
		}
		errCh <- io.EOF
	}()

	for {
		var line string
		select {
		case <-ctx.Done():
			return nil
		case <-rt.Done():
			return nil
		case err := <-errCh:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case line = <-lines:
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" || line == "/q" {
			return nil
		}
		dispatch(line, rt, bus, clips)
	}
}

func dispatch(line string, rt *lifecycle.Runtime, bus *eventbus.Bus, clips clipQueue) {
	if !strings.HasPrefix(line, "/") {
		if !rt.SendMessage(line) {
			color.Yellow("(not sent)")
		}
		return
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/help":
		fmt.Println(helpText)
	case "/open":
		rt.Open()
	case "/close":
		rt.Close()
	case "/toggle":
		rt.Toggle()
	case "/chat":
		rt.EnterConversation()
	case "/back", "/menu":
		rt.Back()
	case "/option":
		if !rt.SelectOption(arg) {
			color.Yellow("unknown option %q", arg)
		}
	case "/attach":
		if arg == "" {
			color.Yellow("usage: /attach PATH")
			return
		}
		// Failures are shown as a notice by the runtime.
		_ = rt.StageFile(arg)
	case "/detach":
		rt.ClearAttachment()
	case "/voice":
		if arg != "" {
			select {
			case clips <- arg:
			default:
			}
		}
		rt.StartVoice()
	case "/mute":
		rt.ToggleMute()
	case "/dismiss":
		rt.DismissNotice()
	case "/reload":
		bus.Publish(eventbus.Event{Name: eventbus.ConfigUpdated, At: time.Now()})
	case "/hide", "/show":
		bus.Publish(eventbus.Event{Name: eventbus.VisibilityChange, Visible: cmd == "/show", At: time.Now()})
	case "/leave":
		bus.Publish(eventbus.Event{Name: eventbus.ExitIntent, At: time.Now()})
	case "/screen":
		if t := rt.Tree(); t != nil {
			fmt.Print(render.Text(t))
		}
	default:
		color.Yellow("unknown command %s (try /help)", cmd)
	}
}

// httpClient bounds every config fetch, chat turn and transcription.
func httpClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		return nil
	}
	return &http.Client{Timeout: timeout}
}
