// Package namegen implements the deployment name generators exposed to the
// template renderer (generate_animalname, generate_cosmicname,
// generate_mythologyname). Word lists are deliberately small representative
// samples, not the original's full vocabularies — per the source spec's
// design notes, only the style/joining contract is required, not the
// specific lists. The joining rule itself is grounded on
// original_source/backend/app/helper/{animalname,cosmicname,mythologyname}.py's
// generate_codename: "ubuntu" = adjective + name + 3-char suffix, "docker" =
// adverb + name + 4-char suffix, "full" = 3-char prefix + adverb + adjective
// + name + 4-char suffix, all "-"-joined; the null preset is adjective +
// name with no prefix/suffix.
package namegen

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Style selects the preset used when joining words, mirroring the
// original's generate_codename(style=...) presets.
type Style string

const (
	StyleNone   Style = ""
	StyleUbuntu Style = "ubuntu"
	StyleDocker Style = "docker"
	StyleFull   Style = "full"
)

var adjectives = []string{
	"brave", "calm", "eager", "fuzzy", "gentle", "happy", "jolly", "keen",
	"lively", "mighty", "nimble", "proud", "quiet", "rapid", "silent",
	"swift", "tidy", "vivid", "witty", "zesty",
}

var adverbs = []string{
	"boldly", "briskly", "calmly", "cleverly", "eagerly", "fiercely", "gently",
	"happily", "keenly", "lightly", "mightily", "nimbly", "proudly", "quietly",
	"rapidly", "silently", "swiftly", "tidily", "vividly", "wittily",
}

var animals = []string{
	"badger", "otter", "falcon", "lynx", "heron", "marten", "ibex", "gecko",
	"orca", "puffin", "wombat", "tapir", "serval", "kestrel", "mongoose",
	"narwhal", "ocelot", "pangolin", "quokka", "raccoon",
}

var cosmicNouns = []string{
	"nebula", "quasar", "comet", "pulsar", "nova", "orbit", "meteor",
	"aurora", "eclipse", "galaxy", "corona", "zenith", "horizon", "photon",
	"vortex", "prism", "stardust", "cosmos", "satellite", "asteroid",
}

var mythNouns = []string{
	"atlas", "phoenix", "titan", "oracle", "griffin", "hydra", "chimera",
	"valkyrie", "kraken", "sphinx", "minotaur", "pegasus", "cerberus",
	"siren", "golem", "gorgon", "hermes", "odin", "thor", "freya",
}

func randomChoice(words []string) string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		return words[0]
	}
	return words[n.Int64()]
}

// randomString mirrors the original's random_string: lowercase letters and
// digits, used for both the "full" style's prefix and every style's suffix.
func randomString(n int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	var sb strings.Builder
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			sb.WriteByte(charset[0])
			continue
		}
		sb.WriteByte(charset[idx.Int64()])
	}
	return sb.String()
}

// join implements generate_codename's per-style preset.
func join(adjective, adverb, name string, style Style) string {
	var parts []string
	switch style {
	case StyleUbuntu:
		parts = []string{adjective, name, randomString(3)}
	case StyleDocker:
		parts = []string{adverb, name, randomString(4)}
	case StyleFull:
		parts = []string{randomString(3), adverb, adjective, name, randomString(4)}
	default:
		parts = []string{adjective, name}
	}
	return strings.Join(parts, "-")
}

// withPrefix prepends the caller-supplied literal prefix (the exposed
// generate_*name(name="", style=...) contract), "-"-joined, when non-empty.
func withPrefix(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "-" + name
}

// Animal generates an adjective/adverb+animal deployment name per style.
func Animal(prefix string, style Style) string {
	return withPrefix(prefix, join(randomChoice(adjectives), randomChoice(adverbs), randomChoice(animals), style))
}

// Cosmic generates an adjective/adverb+cosmic-noun deployment name per style.
func Cosmic(prefix string, style Style) string {
	return withPrefix(prefix, join(randomChoice(adjectives), randomChoice(adverbs), randomChoice(cosmicNouns), style))
}

// Mythology generates an adjective/adverb+mythological-figure deployment
// name per style.
func Mythology(prefix string, style Style) string {
	return withPrefix(prefix, join(randomChoice(adjectives), randomChoice(adverbs), randomChoice(mythNouns), style))
}
