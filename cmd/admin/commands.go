package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"projecthub/backend/internal/api/handler"
	"projecthub/backend/internal/models"

	"github.com/spf13/cobra"
)

var tokenTTL time.Duration

var historyCmd = &cobra.Command{
	Use:   "history <projectId>...",
	Short: "Print the persisted chat history of one or more projects",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseProjectIDs(args)
		if err != nil {
			return err
		}
		s, err := openDB()
		if err != nil {
			return err
		}
		messages, err := s.ListMessagesByRooms(cmd.Context(), ids)
		if err != nil {
			return err
		}
		return writeHistory(cmd.OutOrStdout(), messages)
	},
}

var onlineCmd = &cobra.Command{
	Use:   "online",
	Short: "List the users currently online",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openRedis(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Redis.Close()

		users, err := s.OnlineUsers(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, u := range users {
			fmt.Fprintln(out, u)
		}
		fmt.Fprintf(out, "%d online\n", len(users))
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <userId>",
	Short: "Sign a websocket token for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.AuthSecret == "" {
			return fmt.Errorf("AUTH_SECRET is not set")
		}
		token, err := handler.GenerateToken([]byte(cfg.AuthSecret), args[0], tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}

func parseProjectIDs(args []string) ([]uint, error) {
	ids := make([]uint, 0, len(args))
	for _, arg := range args {
		n, err := strconv.ParseUint(strings.TrimSpace(arg), 10, 64)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("invalid project id %q", arg)
		}
		ids = append(ids, uint(n))
	}
	return ids, nil
}

func writeHistory(w io.Writer, messages []models.ChatMessage) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROJECT\tID\tTIME\tAUTHOR\tCONTENT")
	for _, m := range messages {
		content := strings.ReplaceAll(m.Content, "\n", " ")
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n",
			m.ProjectID, m.ID, m.CreatedAt.Format(time.RFC3339), m.Author.DisplayName(m.AuthorID), content)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d messages\n", len(messages))
	return err
}
