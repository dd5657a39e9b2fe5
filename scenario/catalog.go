// Package scenario produces the immutable conversation context (persona set
// plus shared location) handed to each new conversation.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/crowdchat/parley/types"
)

// Setting is one catalog entry: a persona set and the location it plays out
// in. Index 0 is always assigned to the human, index 1 to the bot.
type Setting struct {
	Personas []types.Persona `yaml:"personas" json:"personas"`
	Location *types.Location `yaml:"location" json:"location"`
}

// Catalog is a fixed set of scenario templates. It is read-only after
// construction and safe to share across concurrent conversations.
type Catalog []Setting

// Validate checks every setting satisfies the persona-count precondition.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return types.NewError(types.ErrConfiguration, "scenario catalog is empty")
	}
	for i, s := range c {
		if len(s.Personas) < 2 {
			return types.NewErrorf(types.ErrConfiguration, "catalog setting %d has %d personas, need at least 2", i, len(s.Personas))
		}
		for j, p := range s.Personas {
			if p.Name == "" {
				return types.NewErrorf(types.ErrConfiguration, "catalog setting %d persona %d has an empty name", i, j)
			}
		}
	}
	return nil
}

// LoadCatalog reads a catalog from a YAML file.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, types.NewError(types.ErrConfiguration, "malformed scenario catalog").WithCause(err)
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return catalog, nil
}

// DefaultCatalog returns a small built-in catalog. Real collection runs are
// expected to load a larger one from file; these entries keep local runs and
// tests self-contained.
func DefaultCatalog() Catalog {
	return Catalog{
		{
			Personas: []types.Persona{
				{
					Name:        "lighthouse keeper",
					Description: "I tend the lamp on the cliff every night. Ships depend on me staying awake. I have not left the point in eleven years and I talk to the gulls more than to people.",
				},
				{
					Name:        "smuggler",
					Description: "I move cargo along the coast after dark. The revenue men have never caught me. I know every cove and current better than any chart.",
				},
				{
					Name:        "fishmonger",
					Description: "I sell the morning catch at the harbor market. I know everyone's business in this town and most of their debts.",
				},
			},
			Location: &types.Location{
				Name: "Lamp room",
				Description: "A narrow circular room at the top of the lighthouse, walled in salt-streaked glass. " +
					"The great lamp sits in its brass cradle at the center, surrounded by drums of oil and a rack of trimming tools. " +
					"A logbook lies open on a small desk beside a cold cup of tea, and the wind hums through a cracked pane.",
			},
		},
		{
			Personas: []types.Persona{
				{
					Name:        "stable hand",
					Description: "I muck the stalls and exercise the horses before dawn. The lord barely knows my name but his mare trusts me more than him.",
				},
				{
					Name:        "traveling surgeon",
					Description: "I ride from village to village pulling teeth and setting bones. I charge what people can pay and I have seen every kind of lie a patient tells.",
				},
				{
					Name:        "miller's widow",
					Description: "I run the mill alone since my husband passed. The grain merchants think they can cheat me on weights. They learn otherwise.",
				},
			},
			Location: &types.Location{
				Name: "Coaching inn yard",
				Description: "A muddy courtyard enclosed by the inn, its stables, and a low stone wall. " +
					"A loaded cart stands with one wheel off, propped on a stump. Chickens pick between the cobbles, " +
					"and the smell of bread and horse sweat mixes in the cold morning air.",
			},
		},
		{
			Personas: []types.Persona{
				{
					Name:        "apprentice cartographer",
					Description: "I copy maps for the guild and sneak my own corrections into the margins. One day a ship will sail true because of a line I drew.",
				},
				{
					Name:        "retired sea captain",
					Description: "I sailed forty years and sank twice. Now I drink tea, argue about weather, and correct anyone who has never rounded the cape.",
				},
			},
			Location: &types.Location{
				Name: "Chart house",
				Description: "A cramped room above the harbor office, every surface buried under rolled charts and lead weights. " +
					"A brass telescope points out the single window toward the breakwater.",
			},
		},
	}
}
