package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"todochat/app/pkg/types"
)

type CLIChannel struct {
	id     string
	userID string
}

func NewCLIChannel(userID string) *CLIChannel {
	if strings.TrimSpace(userID) == "" {
		userID = "local_user"
	}
	return &CLIChannel{id: "cli", userID: userID}
}

func (c *CLIChannel) ID() string {
	return c.id
}

func (c *CLIChannel) Start(ctx context.Context, handler func(types.Message)) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println(">> TodoChat CLI started. Type 'exit' to quit.")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			fmt.Print("> ")
			if !scanner.Scan() {
				return nil
			}
			text := strings.TrimSpace(scanner.Text())
			if text == "exit" || text == "quit" {
				fmt.Println("Exiting CLI loop...")
				return nil
			}

			msg := types.Message{
				ID:             fmt.Sprintf("cli-%d", time.Now().UnixNano()),
				Content:        text,
				Role:           types.MessageRoleUser,
				ChannelID:      c.id,
				UserID:         c.userID,
				ConversationID: c.userID,
				Meta: map[string]interface{}{
					"user_id": c.userID,
				},
			}
			handler(msg)
		}
	}
}

func (c *CLIChannel) Send(ctx context.Context, msg types.Message) error {
	if taskID, ok := msg.Meta["task_id"].(string); ok && taskID != "" {
		fmt.Printf("[TodoChat][task:%s]: %s\n", taskID, msg.Content)
		return nil
	}
	fmt.Printf("[TodoChat]: %s\n", msg.Content)
	return nil
}
