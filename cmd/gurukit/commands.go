package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gurukit/gurukit/internal/config"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the tutor a question",
	Long: `Ask the tutor a question.

Examples:
  gurukit ask "What is photosynthesis?" --user alice
  gurukit ask "Explain gravity" --user bob --model gemini`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		user, _ := cmd.Flags().GetString("user")
		model, _ := cmd.Flags().GetString("model")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]string{
			"user_id":  user,
			"question": question,
		}
		if model != "" {
			req["model"] = model
		}

		resp, err := client.post(cmd.Context(), "/v1/ask", req)
		if err != nil {
			return err
		}

		var bundle struct {
			Text        string   `json:"text"`
			Sources     []string `json:"sources"`
			Images      []string `json:"images"`
			Difficulty  string   `json:"difficulty"`
			CacheStatus string   `json:"cache_status"`
			Provider    string   `json:"provider"`
		}
		if err := decodeJSON(resp, &bundle); err != nil {
			return err
		}

		fmt.Println(bundle.Text)
		if len(bundle.Sources) > 0 {
			fmt.Printf("\n%s\n", colorize(colorBold, "Sources:"))
			for _, s := range bundle.Sources {
				fmt.Printf("  - %s\n", s)
			}
		}
		if len(bundle.Images) > 0 {
			fmt.Printf("\n%s\n", colorize(colorBold, "Images:"))
			for _, img := range bundle.Images {
				fmt.Printf("  - %s\n", img)
			}
		}
		meta := fmt.Sprintf("[%s, %s", bundle.CacheStatus, bundle.Difficulty)
		if bundle.Provider != "" {
			meta += ", via " + bundle.Provider
		}
		meta += "]"
		fmt.Printf("\n%s\n", colorize(colorCyan, meta))
		return nil
	},
}

func init() {
	askCmd.Flags().String("user", "cli", "student identifier")
	askCmd.Flags().String("model", "", "preferred provider (openai or gemini)")
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent conversation turns for a student",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/v1/history?user_id=%s&limit=%d", url.QueryEscape(user), limit)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var turns []struct {
			Question   string `json:"question"`
			Answer     string `json:"answer"`
			Difficulty string `json:"difficulty"`
			Provider   string `json:"provider"`
			CreatedAt  string `json:"created_at"`
		}
		if err := decodeJSON(resp, &turns); err != nil {
			return err
		}

		if len(turns) == 0 {
			fmt.Println("No conversation history found.")
			return nil
		}

		for _, t := range turns {
			fmt.Printf("%s  %s\n", colorize(colorCyan, t.CreatedAt), colorize(colorBold, t.Question))
			answer := t.Answer
			if len(answer) > 200 {
				answer = answer[:200] + "..."
			}
			fmt.Printf("  %s\n\n", answer)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().String("user", "cli", "student identifier")
	historyCmd.Flags().Int("limit", 10, "maximum number of turns to show")
}

// --- student ---

var studentCmd = &cobra.Command{
	Use:   "student",
	Short: "Manage student profiles",
}

var studentSetCmd = &cobra.Command{
	Use:   "set <id>",
	Short: "Create or update a student profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		age, _ := cmd.Flags().GetInt("age")
		standard, _ := cmd.Flags().GetString("standard")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{
			"name":     name,
			"age":      age,
			"standard": standard,
		}
		resp, err := client.put(cmd.Context(), "/v1/students/"+url.PathEscape(args[0]), req)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Updated student %s", args[0])
		return nil
	},
}

var studentShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a student profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/v1/students/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var student struct {
			UserID   string `json:"user_id"`
			Name     string `json:"name"`
			Age      int    `json:"age"`
			Standard string `json:"standard"`
		}
		if err := decodeJSON(resp, &student); err != nil {
			return err
		}

		printStatus("ID", "%s", student.UserID)
		printStatus("Name", "%s", student.Name)
		printStatus("Age", "%d", student.Age)
		printStatus("Standard", "%s", student.Standard)
		return nil
	},
}

func init() {
	studentSetCmd.Flags().String("name", "", "student name")
	studentSetCmd.Flags().Int("age", 12, "student age")
	studentSetCmd.Flags().String("standard", "", "student standard (grade)")
	studentCmd.AddCommand(studentSetCmd)
	studentCmd.AddCommand(studentShowCmd)
}

// --- evict ---

var evictCmd = &cobra.Command{
	Use:   "evict",
	Short: "Evict expired entries from the shared answer cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/v1/cache/evict", nil)
		if err != nil {
			return err
		}

		var result map[string]int64
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Evicted %d expired cache entries", result["evicted"])
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
