// Package compat decides whether a mod's declared Silk range admits the
// installed Silk version. Every undecidable case is reported as incompatible.
package compat

import (
	"fmt"

	apperrors "github.com/huanfeng/entwine-cli/internal/errors"
	"github.com/huanfeng/entwine-cli/pkg/models"
	"github.com/huanfeng/entwine-cli/pkg/utils"
	"github.com/huanfeng/entwine-cli/pkg/versions"
)

// VersionSource reports the installed primary framework version.
type VersionSource interface {
	IsInstalled(gamePath string) bool
	Version(gamePath string) (string, error)
}

// InfoLookup finds the compatibility declaration recorded for an installed mod.
type InfoLookup interface {
	VersionInfo(modsPath, modID string) (models.ModVersionInfo, bool, error)
}

// Checker answers compatibility queries for installed mods.
type Checker struct {
	silk   VersionSource
	lookup InfoLookup
	logger utils.Logger
}

// NewChecker creates a checker.
func NewChecker(silk VersionSource, lookup InfoLookup, logger utils.Logger) *Checker {
	return &Checker{silk: silk, lookup: lookup, logger: utils.OrGlobal(logger)}
}

// Check reports whether modID, as installed in modsPath, accepts the Silk
// version installed in gamePath.
func (c *Checker) Check(gamePath, modsPath, modID string) (bool, error) {
	if modID == "" {
		return false, apperrors.NewInvalidArgumentError("mod id is required")
	}
	if !c.silk.IsInstalled(gamePath) {
		c.logger.Debug("Silk not installed in %s, %s treated as incompatible", gamePath, modID)
		return false, nil
	}
	installed, err := c.silk.Version(gamePath)
	if err != nil {
		return false, err
	}

	info, found, err := c.lookup.VersionInfo(modsPath, modID)
	if err != nil {
		c.logger.Warn("Cannot read version info for %s: %v", modID, err)
		return false, nil
	}
	if !found {
		c.logger.Debug("No version info recorded for %s", modID)
		return false, nil
	}

	ok, reason := Evaluate(installed, info)
	if !ok {
		c.logger.Debug("%s incompatible with Silk %s: %s", modID, installed, reason)
	}
	return ok, nil
}

// Evaluate applies min <= installed <= max. A missing bound is unbounded on
// that side; the declared build version only marks the mod as declaring a
// range. reason explains a negative result.
func Evaluate(installed string, info models.ModVersionInfo) (ok bool, reason string) {
	if !info.Declared() {
		return false, "mod declares no Silk version"
	}
	if !versions.Valid(installed) {
		return false, fmt.Sprintf("installed Silk version %q is not a valid version", installed)
	}

	lower := ""
	if info.MinSilkVersion != nil {
		lower = *info.MinSilkVersion
	}
	upper := ""
	if info.MaxSilkVersion != nil {
		upper = *info.MaxSilkVersion
	}

	in, err := versions.InRange(installed, lower, upper)
	if err != nil {
		return false, err.Error()
	}
	if !in {
		return false, fmt.Sprintf("requires Silk %s", describeRange(lower, upper))
	}
	return true, ""
}

func describeRange(lower, upper string) string {
	switch {
	case lower != "" && upper != "":
		return fmt.Sprintf("%s to %s", lower, upper)
	case lower != "":
		return ">= " + lower
	case upper != "":
		return "<= " + upper
	default:
		return "any"
	}
}

// Require returns an IncompatibleVersionError unless info admits installed.
func Require(modID, installed string, info models.ModVersionInfo) error {
	if ok, reason := Evaluate(installed, info); !ok {
		return apperrors.NewIncompatibleVersionError(modID, installed,
			fmt.Sprintf("%s is not compatible with Silk %s: %s", modID, installed, reason))
	}
	return nil
}
