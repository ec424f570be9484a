package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach/internal/api"
	"github.com/sells-group/outreach/internal/model"
)

var leadCmd = &cobra.Command{
	Use:   "lead",
	Short: "Manage leads",
}

// -- lead add --

var leadAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a pending lead",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		user, _ := cmd.Flags().GetString("user")
		website, _ := cmd.Flags().GetString("website")
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		source, _ := cmd.Flags().GetString("source")

		src, err := parseSource(source)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		lead, err := st.CreateLead(ctx, model.Lead{
			UserID:  strings.TrimSpace(user),
			Website: strings.TrimSpace(website),
			Name:    strings.TrimSpace(name),
			Email:   strings.TrimSpace(email),
			Status:  model.LeadStatusPending,
			Source:  src,
		})
		if err != nil {
			return eris.Wrap(err, "lead add")
		}
		fmt.Fprintln(os.Stdout, lead.ID)
		return nil
	},
}

func parseSource(s string) (model.LeadSource, error) {
	for _, src := range model.AllLeadSources() {
		if string(src) == s {
			return src, nil
		}
	}
	return "", eris.Errorf("unknown lead source %q", s)
}

// -- product add --

var productCmd = &cobra.Command{
	Use:   "product",
	Short: "Manage product materials used as email context",
}

var productAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a product material",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		user, _ := cmd.Flags().GetString("user")
		name, _ := cmd.Flags().GetString("name")
		if strings.TrimSpace(name) == "" {
			return eris.New("--name must not be blank")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		m, err := st.AddProductMaterial(ctx, strings.TrimSpace(user), strings.TrimSpace(name))
		if err != nil {
			return eris.Wrap(err, "product add")
		}
		fmt.Fprintln(os.Stdout, m.ID)
		return nil
	},
}

// -- token --

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the progress and lead endpoints",
	RunE: func(cmd *cobra.Command, _ []string) error {
		user, _ := cmd.Flags().GetString("user")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if cfg.Auth.JWTSecret == "" {
			return eris.New("auth.jwt_secret is not set (OUTREACH_AUTH_JWT_SECRET)")
		}

		tok, err := api.IssueToken([]byte(cfg.Auth.JWTSecret), user, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, tok)
		return nil
	},
}

func init() {
	leadAddCmd.Flags().String("user", "", "owner user id")
	leadAddCmd.Flags().String("website", "", "company website")
	leadAddCmd.Flags().String("name", "", "contact or company name")
	leadAddCmd.Flags().String("email", "", "contact email")
	leadAddCmd.Flags().String("source", string(model.LeadSourceManual), "lead source: excel, manual or scraped")
	_ = leadAddCmd.MarkFlagRequired("user")
	leadCmd.AddCommand(leadAddCmd)

	productAddCmd.Flags().String("user", "", "owner user id")
	productAddCmd.Flags().String("name", "", "material name")
	_ = productAddCmd.MarkFlagRequired("user")
	_ = productAddCmd.MarkFlagRequired("name")
	productCmd.AddCommand(productAddCmd)

	tokenCmd.Flags().String("user", "", "user id placed in the token subject")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(leadCmd, productCmd, tokenCmd)
}
