package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/iye-ms/msec-feedback/pkg/common/models"
	"gopkg.in/yaml.v3"
)

// ProductEntry holds the per-product knobs for every source adapter.
type ProductEntry struct {
	Subreddit string   `yaml:"subreddit" json:"subreddit"`
	QATagID   string   `yaml:"qa_tag_id" json:"qa_tag_id"`
	QATagName string   `yaml:"qa_tag_name" json:"qa_tag_name"`
	ForumID   string   `yaml:"forum_id,omitempty" json:"forum_id,omitempty"`
	ForumName string   `yaml:"forum_name,omitempty" json:"forum_name,omitempty"`
	Keywords  []string `yaml:"keywords" json:"keywords"`
}

// Catalog maps products to their source-specific identifiers plus the Q&A
// tag-to-product table used by bulk scraping to attribute mixed-product feeds.
type Catalog struct {
	Products     map[models.Product]ProductEntry `yaml:"products" json:"products"`
	TagToProduct map[string]models.Product       `yaml:"tag_to_product" json:"tag_to_product"`

	// FallbackProduct absorbs bulk Q&A questions no rule matches.
	FallbackProduct models.Product `yaml:"fallback_product" json:"fallback_product"`
}

func Load(path string) (Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Default(), err
	}

	var cat Catalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return Catalog{}, err
	}
	if len(cat.Products) == 0 {
		return Catalog{}, fmt.Errorf("product catalog empty")
	}
	if cat.FallbackProduct == "" {
		cat.FallbackProduct = models.ProductAzure
	}
	return cat, nil
}

// Lookup returns the catalog entry for a product.
func (c Catalog) Lookup(product models.Product) (ProductEntry, bool) {
	entry, ok := c.Products[product]
	return entry, ok
}

// HasForum reports whether a product has a dedicated Feedback Portal forum.
func (c Catalog) HasForum(product models.Product) bool {
	entry, ok := c.Products[product]
	return ok && entry.ForumID != ""
}

// InferProduct attributes a bulk-scraped question to a product. Fallback
// order: exact tag match, tag substring match, content keyword match, then
// the catalog's fallback product. The heuristic has no ground truth;
// misattribution is tolerated.
func (c Catalog) InferProduct(tags []string, content string) models.Product {
	for _, tag := range tags {
		if product, ok := c.TagToProduct[tag]; ok {
			return product
		}
	}

	// Fixed product order so overlapping keywords resolve deterministically.
	for _, tag := range tags {
		lower := strings.ToLower(tag)
		for _, product := range models.Products {
			entry, ok := c.Products[product]
			if !ok {
				continue
			}
			for _, keyword := range entry.Keywords {
				if strings.Contains(lower, keyword) {
					return product
				}
			}
		}
	}

	lowerContent := strings.ToLower(content)
	for _, product := range models.Products {
		entry, ok := c.Products[product]
		if !ok {
			continue
		}
		for _, keyword := range entry.Keywords {
			if strings.Contains(lowerContent, keyword) {
				return product
			}
		}
	}

	return c.FallbackProduct
}

// Default is the compiled-in catalog used when no YAML override is configured.
func Default() Catalog {
	return Catalog{
		Products: map[models.Product]ProductEntry{
			models.ProductIntune: {
				Subreddit: "Intune",
				QATagID:   "456",
				QATagName: "microsoft-security-intune",
				ForumID:   "ef1d6d38-fd1b-ec11-b6e7-0022481f8472",
				ForumName: "Microsoft Intune",
				Keywords:  []string{"intune", "mdm", "endpoint manager"},
			},
			models.ProductEntra: {
				Subreddit: "entra",
				QATagID:   "455",
				QATagName: "microsoft-security-entra-entra-id",
				Keywords:  []string{"entra", "azure ad", "azure-ad", "conditional access", "authenticator"},
			},
			models.ProductDefender: {
				Subreddit: "DefenderATP",
				QATagID:   "459",
				QATagName: "microsoft-security-defender",
				Keywords:  []string{"defender", "atp", "threat protection"},
			},
			models.ProductAzure: {
				Subreddit: "AZURE",
				QATagID:   "827",
				QATagName: "microsoft-security",
				Keywords:  []string{"azure security", "sentinel"},
			},
			models.ProductPurview: {
				Subreddit: "MicrosoftPurview",
				QATagID:   "460",
				QATagName: "microsoft-security-purview",
				Keywords:  []string{"purview", "compliance", "dlp"},
			},
		},
		TagToProduct: map[string]models.Product{
			"microsoft-security-intune":                   models.ProductIntune,
			"microsoft-security-entra":                    models.ProductEntra,
			"microsoft-security-entra-entra-id":           models.ProductEntra,
			"microsoft-security-microsoft-entra-id":       models.ProductEntra,
			"microsoft-security-defender":                 models.ProductDefender,
			"microsoft-security-defender-for-endpoint":    models.ProductDefender,
			"microsoft-security-defender-for-office-365":  models.ProductDefender,
			"microsoft-security-defender-for-identity":    models.ProductDefender,
			"microsoft-security-defender-for-cloud":       models.ProductDefender,
			"microsoft-security-defender-for-cloud-apps":  models.ProductDefender,
			"microsoft-security-purview":                  models.ProductPurview,
			"microsoft-security-microsoft-authenticator":  models.ProductEntra,
			"microsoft-security-conditional-access":       models.ProductEntra,
			"microsoft-security-azure-ad-b2c":             models.ProductEntra,
			"microsoft-security-windows-hello":            models.ProductEntra,
		},
		FallbackProduct: models.ProductAzure,
	}
}
