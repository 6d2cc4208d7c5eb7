package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/imkarma/logiri/internal/agent"
	"github.com/imkarma/logiri/internal/chat"
	"github.com/imkarma/logiri/internal/clock"
	"github.com/imkarma/logiri/internal/prompt"
)

var (
	chatUser       string
	chatShowPrompt bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Ask the assistant about the data; proposed tasks land on the board",
	Long: "With a message, runs one turn and exits. Without one, starts an\n" +
		"interactive session that keeps the conversation history.",
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatUser, "user", "u", "", "Team member asking (sets the role in the prompt)")
	chatCmd.Flags().BoolVar(&chatShowPrompt, "show-prompt", false, "Print the system prompt and exit")
}

var (
	glamourRenderer     *glamour.TermRenderer
	glamourRendererOnce sync.Once
)

// getGlamourRenderer returns a cached markdown renderer, nil if it could
// not be built.
func getGlamourRenderer() *glamour.TermRenderer {
	glamourRendererOnce.Do(func() {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err == nil {
			glamourRenderer = r
		}
	})
	return glamourRenderer
}

func runChat(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	b := newBoard(s)
	user := chatIdentity()

	if chatShowPrompt {
		system, err := prompt.New(s, b, cfg, clock.RealClock{}, logger).Build(ctx, user)
		if err != nil {
			return err
		}
		fmt.Println(system)
		return nil
	}

	svc, err := newChat(ctx, s, b)
	if err != nil {
		return err
	}

	if len(args) > 0 {
		history := []agent.Message{{Role: agent.RoleUser, Content: strings.Join(args, " ")}}
		reply, err := svc.Ask(ctx, user, history)
		if err != nil {
			return err
		}
		printReply(reply)
		return nil
	}

	fmt.Printf("%s%s%s is ready. Empty line or Ctrl-D to quit.\n", colorBold, cfg.Assistant.Name, colorReset)
	var history []agent.Message
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("\n%s>%s ", colorCyan, colorReset)
		if !in.Scan() {
			fmt.Println()
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			return nil
		}

		history = append(history, agent.Message{Role: agent.RoleUser, Content: line})
		reply, err := svc.Ask(ctx, user, history)
		if err != nil {
			// Drop the unanswered turn so the history stays alternating.
			history = history[:len(history)-1]
			fmt.Printf("%serror:%s %v\n", colorRed, colorReset, err)
			continue
		}
		history = append(history, agent.Message{Role: agent.RoleAssistant, Content: reply.Text})
		printReply(reply)
	}
}

// chatIdentity resolves --user against the roster.
func chatIdentity() prompt.User {
	u := prompt.User{Name: chatUser}
	if m, ok := cfg.Member(chatUser); ok {
		u.Role = m.Role
	}
	return u
}

func printReply(r *chat.Reply) {
	fmt.Println()
	rendered := r.Text
	if isTerminal() {
		if renderer := getGlamourRenderer(); renderer != nil {
			if out, err := renderer.Render(r.Text); err == nil {
				rendered = strings.TrimRight(out, "\n")
			}
		}
	}
	fmt.Println(rendered)

	if len(r.Created) > 0 {
		fmt.Printf("\n%s✓ Created %d task(s):%s\n", colorGreen+colorBold, len(r.Created), colorReset)
		for _, t := range r.Created {
			who := ""
			if t.AssignedTo != "" {
				who = " [" + t.AssignedTo + "]"
			}
			fmt.Printf("  %s#%d%s %s%s\n", priorityColor(t.Priority), t.ID, colorReset, t.Title, who)
		}
	}
	for _, sk := range r.Skipped {
		fmt.Printf("  %sskipped%s %q: %s\n", colorDim, colorReset, sk.Title, sk.Reason)
	}
}
