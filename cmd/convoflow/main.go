// Command convoflow runs a sample bot on the console.
//
// Usage:
//
//	convoflow chat                      # interactive console session
//	convoflow chat --config config.yaml # with a config file
//	convoflow version                   # show build info
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/convoflow/convoflow/config"
	"github.com/convoflow/convoflow/dialog"
	"github.com/convoflow/convoflow/prompts"
	"github.com/convoflow/convoflow/state"
	"github.com/convoflow/convoflow/storage"
	"github.com/convoflow/convoflow/types"
)

// Build-time values injected via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "chat":
		runChat(os.Args[2:])
	case "version":
		fmt.Printf("convoflow %s (%s)\n", Version, GitCommit)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`convoflow - dialog orchestration sample bot

Commands:
  chat      Start an interactive console session
  version   Show build info
  help      Show this help`)
}

func runChat(args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.Log.BuildLogger()
	defer logger.Sync()

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	defer store.Close()

	root, err := buildGreetingDialog()
	if err != nil {
		logger.Fatal("build dialogs", zap.Error(err))
	}

	mgr, err := dialog.NewManager(root, state.NewConversationState(store),
		dialog.WithUserState(state.NewUserState(store)),
		dialog.WithStateProperty(cfg.Bot.StateProperty),
		dialog.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("create dialog manager", zap.Error(err))
	}

	logger.Info("starting console session",
		zap.String("version", Version),
		zap.String("storage", string(cfg.Storage.Type)),
	)

	if err := consoleLoop(mgr, cfg.Bot.Locale); err != nil {
		logger.Fatal("console session failed", zap.Error(err))
	}
}

// buildGreetingDialog assembles the sample conversation: ask for a name,
// an age, then confirm before summarizing.
func buildGreetingDialog() (dialog.Dialog, error) {
	namePrompt, err := prompts.NewTextPrompt("namePrompt", func(ctx context.Context, vc *prompts.ValidatorContext[string]) (bool, error) {
		return vc.Recognized.Succeeded && strings.TrimSpace(vc.Recognized.Value) != "", nil
	})
	if err != nil {
		return nil, err
	}
	agePrompt, err := prompts.NewNumberPrompt("agePrompt", func(ctx context.Context, vc *prompts.ValidatorContext[float64]) (bool, error) {
		return vc.Recognized.Succeeded && vc.Recognized.Value > 0 && vc.Recognized.Value < 150, nil
	})
	if err != nil {
		return nil, err
	}
	confirmPrompt, err := prompts.NewConfirmPrompt("confirmPrompt", nil)
	if err != nil {
		return nil, err
	}

	waterfall, err := dialog.NewWaterfallDialog("greetingFlow",
		func(ctx context.Context, step *dialog.WaterfallStepContext) (dialog.TurnResult, error) {
			return step.Context.Prompt(ctx, "namePrompt", &prompts.PromptOptions{
				Prompt:      types.MessageActivity("What is your name?"),
				RetryPrompt: types.MessageActivity("I need a name to continue."),
			})
		},
		func(ctx context.Context, step *dialog.WaterfallStepContext) (dialog.TurnResult, error) {
			step.Values()["name"] = step.Result()
			return step.Context.Prompt(ctx, "agePrompt", &prompts.PromptOptions{
				Prompt:      types.MessageActivity("How old are you?"),
				RetryPrompt: types.MessageActivity("Please give me a number between 1 and 149."),
			})
		},
		func(ctx context.Context, step *dialog.WaterfallStepContext) (dialog.TurnResult, error) {
			step.Values()["age"] = step.Result()
			return step.Context.Prompt(ctx, "confirmPrompt", &prompts.PromptOptions{
				Prompt: types.MessageActivity("Is that correct?"),
			})
		},
		func(ctx context.Context, step *dialog.WaterfallStepContext) (dialog.TurnResult, error) {
			confirmed, _ := step.Result().(bool)
			if confirmed {
				name, _ := step.Values()["name"].(string)
				age, _ := step.Values()["age"].(float64)
				if _, err := step.Turn().SendText(ctx, fmt.Sprintf("Thanks %s, I have you down as %.0f.", name, age)); err != nil {
					return dialog.TurnResult{}, err
				}
			} else {
				if _, err := step.Turn().SendText(ctx, "No problem, let's start over next time."); err != nil {
					return dialog.TurnResult{}, err
				}
			}
			return step.Context.EndDialog(ctx, nil)
		},
	)
	if err != nil {
		return nil, err
	}

	component, err := dialog.NewComponentDialog("greeting")
	if err != nil {
		return nil, err
	}
	for _, d := range []dialog.Dialog{waterfall, namePrompt, agePrompt, confirmPrompt} {
		if err := component.AddDialog(d); err != nil {
			return nil, err
		}
	}
	return component, nil
}

// consoleSender prints bot replies to stdout.
type consoleSender struct{}

func (s *consoleSender) SendActivities(ctx context.Context, activities []*types.Activity) ([]types.ResourceResponse, error) {
	responses := make([]types.ResourceResponse, len(activities))
	for i, a := range activities {
		if a.Type == types.ActivityMessage && a.Text != "" {
			fmt.Printf("bot> %s\n", a.Text)
		}
		responses[i] = types.ResourceResponse{ID: fmt.Sprintf("console-%d", i)}
	}
	return responses, nil
}

func consoleLoop(mgr *dialog.Manager, locale string) error {
	sender := &consoleSender{}
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Type a message, or /quit to exit.")

	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/quit" || text == "/exit" {
			return nil
		}

		activity := types.MessageActivity(text)
		activity.ChannelID = "console"
		activity.Conversation = &types.ConversationAccount{ID: "console"}
		activity.From = &types.ChannelAccount{ID: "user", Name: "User"}
		activity.Recipient = &types.ChannelAccount{ID: "bot", Name: "Bot"}
		activity.Locale = locale

		tc := types.NewTurnContext(sender, activity)
		if _, err := mgr.OnTurn(context.Background(), tc); err != nil {
			return err
		}
	}
}
