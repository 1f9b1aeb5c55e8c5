package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hakim/brandwatch/internal/api"
	"github.com/hakim/brandwatch/internal/models"
)

var brandCmd = &cobra.Command{
	Use:   "brand",
	Short: "Manage monitored brands",
}

var brandAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a brand and start its onboarding scan",
	Long: `Register a brand for monitoring. A full onboarding scan starts immediately
unless --skip-scan is given; use --wait to follow it to completion.

Several brands can be imported at once from a YAML file:

  brands:
    - owner: user-1
      name: Acme Widgets
      domain: acmewidgets.com
      keywords: [widgets, shop]
      owned_domains: ["*.acmewidgets.com"]

Examples:
  brandwatch brand add --owner user-1 --name "Acme Widgets" -d acmewidgets.com
  brandwatch brand add --file brands.yaml --skip-scan`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		skipScan, _ := cmd.Flags().GetBool("skip-scan")
		wait, _ := cmd.Flags().GetBool("wait")

		var reqs []api.CreateBrandRequest
		if file != "" {
			var err error
			reqs, err = loadBrandFile(file)
			if err != nil {
				return err
			}
		} else {
			owner, _ := cmd.Flags().GetString("owner")
			name, _ := cmd.Flags().GetString("name")
			domain, _ := cmd.Flags().GetString("domain")
			keywords, _ := cmd.Flags().GetString("keywords")
			social, _ := cmd.Flags().GetString("social")
			owned, _ := cmd.Flags().GetString("owned")
			country, _ := cmd.Flags().GetString("country")
			reqs = []api.CreateBrandRequest{{
				OwnerID:       owner,
				Name:          name,
				Domain:        domain,
				Keywords:      splitCSV(keywords),
				SocialHandles: splitCSV(social),
				OwnedDomains:  splitCSV(owned),
				CountryCode:   country,
			}}
		}

		ctx := context.Background()
		be, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer be.Close()

		var scanIDs []string
		for _, req := range reqs {
			req.SkipScan = skipScan
			resp, err := be.CreateBrand(ctx, req)
			if err != nil {
				return fmt.Errorf("adding brand %q: %w", req.Name, err)
			}
			fmt.Printf("[+] Brand %s (%s) registered: %s\n", resp.Brand.Name, resp.Brand.Domain, resp.Brand.ID)
			if resp.ScanID != "" {
				fmt.Printf("[*] Onboarding scan started: %s\n", resp.ScanID)
				scanIDs = append(scanIDs, resp.ScanID)
			}
		}

		if !wait {
			return nil
		}
		for _, id := range scanIDs {
			if err := followScan(ctx, be, id); err != nil {
				return err
			}
		}
		return nil
	},
}

var brandListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered brands",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		be, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer be.Close()

		brands, err := be.ListBrands(ctx)
		if err != nil {
			return fmt.Errorf("listing brands: %w", err)
		}
		if len(brands) == 0 {
			fmt.Println("No brands registered")
			return nil
		}

		fmt.Printf("  %-36s  %-24s  %-28s  %s\n", "ID", "Name", "Domain", "Owner")
		for _, b := range brands {
			fmt.Printf("  %-36s  %-24s  %-28s  %s\n", b.ID, b.Name, b.Domain, b.OwnerID)
		}
		fmt.Printf("Total: %d brand(s)\n", len(brands))
		return nil
	},
}

var brandShowCmd = &cobra.Command{
	Use:   "show <brand-id>",
	Short: "Show a brand",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		be, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer be.Close()

		b, err := be.GetBrand(ctx, args[0])
		if err != nil {
			return fmt.Errorf("loading brand: %w", err)
		}
		printBrand(b)
		return nil
	},
}

var brandUpdateCmd = &cobra.Command{
	Use:   "update <brand-id>",
	Short: "Change a brand's keywords, social handles, owned domains or country",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var upd models.BrandUpdate
		if cmd.Flags().Changed("keywords") {
			v, _ := cmd.Flags().GetString("keywords")
			upd.Keywords = nonNil(splitCSV(v))
		}
		if cmd.Flags().Changed("social") {
			v, _ := cmd.Flags().GetString("social")
			upd.SocialHandles = nonNil(splitCSV(v))
		}
		if cmd.Flags().Changed("owned") {
			v, _ := cmd.Flags().GetString("owned")
			upd.OwnedDomains = nonNil(splitCSV(v))
		}
		if cmd.Flags().Changed("country") {
			v, _ := cmd.Flags().GetString("country")
			upd.CountryCode = &v
		}

		ctx := context.Background()
		be, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer be.Close()

		b, err := be.UpdateBrand(ctx, args[0], upd)
		if err != nil {
			return fmt.Errorf("updating brand: %w", err)
		}
		fmt.Println("[+] Brand updated")
		printBrand(b)
		return nil
	},
}

type brandFile struct {
	Brands []struct {
		Owner        string   `yaml:"owner"`
		Name         string   `yaml:"name"`
		Domain       string   `yaml:"domain"`
		Keywords     []string `yaml:"keywords"`
		Social       []string `yaml:"social_handles"`
		OwnedDomains []string `yaml:"owned_domains"`
		Country      string   `yaml:"country"`
	} `yaml:"brands"`
}

// loadBrandFile reads a bulk import file.
func loadBrandFile(path string) ([]api.CreateBrandRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading brand file: %w", err)
	}
	var f brandFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing brand file: %w", err)
	}
	if len(f.Brands) == 0 {
		return nil, fmt.Errorf("brand file %s lists no brands", path)
	}

	reqs := make([]api.CreateBrandRequest, 0, len(f.Brands))
	for _, b := range f.Brands {
		reqs = append(reqs, api.CreateBrandRequest{
			OwnerID:       b.Owner,
			Name:          b.Name,
			Domain:        b.Domain,
			Keywords:      b.Keywords,
			SocialHandles: b.Social,
			OwnedDomains:  b.OwnedDomains,
			CountryCode:   b.Country,
		})
	}
	return reqs, nil
}

func printBrand(b *models.Brand) {
	fmt.Printf("    ID:        %s\n", b.ID)
	fmt.Printf("    Name:      %s\n", b.Name)
	fmt.Printf("    Domain:    %s\n", b.Domain)
	fmt.Printf("    Owner:     %s\n", b.OwnerID)
	fmt.Printf("    Keywords:  %s\n", joinOrDash(b.Keywords))
	fmt.Printf("    Social:    %s\n", joinOrDash(b.SocialHandles))
	fmt.Printf("    Owned:     %s\n", joinOrDash(b.OwnedDomains))
	fmt.Printf("    Country:   %s\n", orDash(b.CountryCode))
	fmt.Printf("    Created:   %s\n", b.CreatedAt.UTC().Format("2006-01-02 15:04"))
}

// nonNil keeps an explicitly cleared list distinct from "leave unchanged".
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func init() {
	brandAddCmd.Flags().String("owner", "", "owning user ID")
	brandAddCmd.Flags().String("name", "", "brand name")
	brandAddCmd.Flags().StringP("domain", "d", "", "primary brand domain")
	brandAddCmd.Flags().String("file", "", "YAML file of brands to import")
	brandAddCmd.Flags().Bool("skip-scan", false, "do not start the onboarding scan")
	brandAddCmd.Flags().Bool("wait", false, "poll the onboarding scan until it finishes")

	for _, c := range []*cobra.Command{brandAddCmd, brandUpdateCmd} {
		c.Flags().String("keywords", "", "comma-separated brand keywords")
		c.Flags().String("social", "", "comma-separated social handles")
		c.Flags().String("owned", "", "comma-separated owned domain patterns (wildcards allowed)")
		c.Flags().String("country", "", "ISO country code used for the local TLD")
	}

	brandCmd.AddCommand(brandAddCmd, brandListCmd, brandShowCmd, brandUpdateCmd)
	rootCmd.AddCommand(brandCmd)
}
