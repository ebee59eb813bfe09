// Package reportconfig holds the settings of a run, merged from command
// line flags, GCOVR_ environment variables, an optional .env file and an
// optional YAML config file.
package reportconfig

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"

	"github.com/gcovr/gcovr-sub000/internal/exclusion"
	"github.com/gcovr/gcovr-sub000/internal/logging"
	"github.com/gcovr/gcovr-sub000/internal/model"
	"github.com/gcovr/gcovr-sub000/internal/parser/filtering"
	"github.com/gcovr/gcovr-sub000/internal/parser/hits"
	"github.com/gcovr/gcovr-sub000/internal/utils"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of the environment variables, e.g.
// GCOVR_MERGE_MODE_FUNCTIONS.
const EnvPrefix = "GCOVR"

// Configuration keys. They equal the flag names so bound flags, the config
// file and the environment share them.
const (
	KeyConfig                     = "config"
	KeyRoot                       = "root"
	KeySearchPaths                = "search-paths"
	KeyVerbosity                  = "verbosity"
	KeyFilter                     = "filter"
	KeyExclude                    = "exclude"
	KeyGcovIgnoreParseErrors      = "gcov-ignore-parse-errors"
	KeySuspiciousHitsThreshold    = "gcov-suspicious-hits-threshold"
	KeyMergeModeFunctions         = "merge-mode-functions"
	KeyMergeModeConditions        = "merge-mode-conditions"
	KeyDecisions                  = "decisions"
	KeyCalls                      = "calls"
	KeyJSON                       = "json"
	KeyJSONPretty                 = "json-pretty"
	KeyJSONAddTracefile           = "json-add-tracefile"
	KeyJobs                       = "jobs"
	KeyDeleteGcovFiles            = "delete-gcov-files"
	KeySourceEncoding             = "source-encoding"
	KeyExcludeUnreachableBranches = "exclude-unreachable-branches"
	KeyExcludeThrowBranches       = "exclude-throw-branches"
	KeyExcludeFunctionLines       = "exclude-function-lines"
	KeyExcludeInternalFunctions   = "exclude-internal-functions"
	KeyExcludeNoncodeLines        = "exclude-noncode-lines"
	KeyExcludeLinesByPattern      = "exclude-lines-by-pattern"
	KeyExcludeBranchesByPattern   = "exclude-branches-by-pattern"
	KeyExcludePatternPrefix       = "exclude-pattern-prefix"
	KeyNoMarkers                  = "no-markers"
	KeySortKey                    = "sort"
	KeySortReverse                = "sort-reverse"
	KeySortMetric                 = "sort-metric"
)

// Configuration is the decoded configuration of a run. Call Validate
// before using the accessors.
type Configuration struct {
	Root                  string                   `mapstructure:"root"`
	SearchPaths           []string                 `mapstructure:"search-paths"`
	Verbosity             logging.VerbosityLevel   `mapstructure:"verbosity"`
	Filters               []string                 `mapstructure:"filter"`
	Excludes              []string                 `mapstructure:"exclude"`
	GcovIgnoreParseErrors []string                 `mapstructure:"gcov-ignore-parse-errors"`
	SuspiciousHits        int64                    `mapstructure:"gcov-suspicious-hits-threshold"`
	MergeModeFunctions    model.FunctionMergeMode  `mapstructure:"merge-mode-functions"`
	MergeModeConditions   model.ConditionMergeMode `mapstructure:"merge-mode-conditions"`
	Decisions             bool                     `mapstructure:"decisions"`
	Calls                 bool                     `mapstructure:"calls"`
	JSON                  string                   `mapstructure:"json"`
	JSONPretty            bool                     `mapstructure:"json-pretty"`
	JSONAddTracefile      []string                 `mapstructure:"json-add-tracefile"`
	Jobs                  int                      `mapstructure:"jobs"`
	DeleteGcovFiles       bool                     `mapstructure:"delete-gcov-files"`
	Encoding              string                   `mapstructure:"source-encoding"`

	ExcludeUnreachableBranches bool   `mapstructure:"exclude-unreachable-branches"`
	ExcludeThrowBranches       bool   `mapstructure:"exclude-throw-branches"`
	ExcludeFunctionLines       bool   `mapstructure:"exclude-function-lines"`
	ExcludeInternalFunctions   bool   `mapstructure:"exclude-internal-functions"`
	ExcludeNoncodeLines        bool   `mapstructure:"exclude-noncode-lines"`
	ExcludeLinesByPattern      string `mapstructure:"exclude-lines-by-pattern"`
	ExcludeBranchesByPattern   string `mapstructure:"exclude-branches-by-pattern"`
	ExcludePatternPrefix       string `mapstructure:"exclude-pattern-prefix"`
	NoMarkers                  bool   `mapstructure:"no-markers"`

	SortKey     model.SortKey    `mapstructure:"sort"`
	SortReverse bool             `mapstructure:"sort-reverse"`
	SortMetric  model.SortMetric `mapstructure:"sort-metric"`

	filter filtering.IFilter
	ignore hits.IgnoreSet
}

// SetDefaults registers the default of every key. Keys without a default
// are not looked up in the environment.
func SetDefaults(v *viper.Viper) {
	for _, key := range []string{KeySearchPaths, KeyFilter, KeyExclude, KeyGcovIgnoreParseErrors, KeyJSONAddTracefile} {
		v.SetDefault(key, []string{})
	}
	for _, key := range []string{
		KeyDecisions, KeyCalls, KeyJSONPretty, KeyDeleteGcovFiles, KeySortReverse, KeyNoMarkers,
		KeyExcludeUnreachableBranches, KeyExcludeThrowBranches, KeyExcludeFunctionLines,
		KeyExcludeInternalFunctions, KeyExcludeNoncodeLines,
	} {
		v.SetDefault(key, false)
	}
	for _, key := range []string{KeyJSON, KeyExcludeLinesByPattern, KeyExcludeBranchesByPattern} {
		v.SetDefault(key, "")
	}
	v.SetDefault(KeyRoot, ".")
	v.SetDefault(KeyVerbosity, logging.Info.String())
	v.SetDefault(KeySuspiciousHitsThreshold, int64(hits.SuspiciousCounter))
	v.SetDefault(KeyMergeModeFunctions, model.FunctionMergeStrict.String())
	v.SetDefault(KeyMergeModeConditions, model.ConditionMergeStrict.String())
	v.SetDefault(KeyJobs, 1)
	v.SetDefault(KeySourceEncoding, "utf-8")
	v.SetDefault(KeyExcludePatternPrefix, exclusion.DefaultPatternPrefix)
	v.SetDefault(KeySortKey, string(model.SortByFilename))
	v.SetDefault(KeySortMetric, string(model.MetricLine))
}

// Load reads an optional .env file and config file into v and decodes the
// result. Without an explicit config file, gcovr.yaml is looked up in the
// working directory and in ./configs.
func Load(v *viper.Viper) (*Configuration, error) {
	_ = godotenv.Load()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if file := v.GetString(KeyConfig); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("gcovr")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	c, err := Decode(v)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Decode unmarshals the settings of v without validating them.
func Decode(v *viper.Viper) (*Configuration, error) {
	var c Configuration
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		splitListHook,
		parseEnumHook,
	))
	if err := v.Unmarshal(&c, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data: %w", err)
	}
	return &c, nil
}

// listSeparators split list settings given as one string, e.g. in the
// environment. Separators inside glob braces are kept.
var listSeparators = []rune{',', ';'}

var stringSliceType = reflect.TypeOf([]string(nil))

// splitListHook decodes a string into a list setting.
func splitListHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != stringSliceType {
		return data, nil
	}
	return utils.SplitThatEnsuresGlobsAreSafe(data.(string), listSeparators), nil
}

var (
	verbosityType         = reflect.TypeOf(logging.VerbosityLevel(0))
	functionMergeModeType = reflect.TypeOf(model.FunctionMergeMode(0))
	conditionMergeType    = reflect.TypeOf(model.ConditionMergeMode(0))
)

// parseEnumHook decodes the names of the enum settings.
func parseEnumHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	s, ok := data.(string)
	if !ok || from.Kind() != reflect.String {
		return data, nil
	}
	switch to {
	case verbosityType:
		return logging.ParseVerbosity(s)
	case functionMergeModeType:
		return model.ParseFunctionMergeMode(s)
	case conditionMergeType:
		return model.ParseConditionMergeMode(s)
	}
	return data, nil
}

// Validate checks the settings and resolves the root, the filters and the
// ignore policy.
func (c *Configuration) Validate() error {
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("error resolving root %q: %w", c.Root, err)
	}
	c.Root = root
	if len(c.SearchPaths) == 0 {
		c.SearchPaths = []string{root}
	}
	if c.Jobs <= 0 {
		c.Jobs = runtime.NumCPU()
	}
	if c.SuspiciousHits < 0 {
		return fmt.Errorf("--%s must not be negative, got %d", KeySuspiciousHitsThreshold, c.SuspiciousHits)
	}

	switch c.SortKey {
	case model.SortByFilename, model.SortByUncoveredNumber, model.SortByUncoveredPercent:
	default:
		return fmt.Errorf("invalid sort key %q", c.SortKey)
	}
	switch c.SortMetric {
	case model.MetricLine, model.MetricBranch, model.MetricDecision:
	default:
		return fmt.Errorf("invalid sort metric %q", c.SortMetric)
	}

	if c.ignore, err = hits.ParseIgnoreSet(c.GcovIgnoreParseErrors); err != nil {
		return err
	}
	if c.filter, err = filtering.NewPathFilter(root, c.Filters, c.Excludes); err != nil {
		return err
	}
	if _, err := exclusion.New(c.ExclusionOptions()); err != nil {
		return err
	}
	return nil
}

func (c *Configuration) RootDirectory() string             { return c.Root }
func (c *Configuration) FileFilters() filtering.IFilter    { return c.filter }
func (c *Configuration) IgnoreParseErrors() hits.IgnoreSet { return c.ignore }
func (c *Configuration) SuspiciousHitsThreshold() int64    { return c.SuspiciousHits }
func (c *Configuration) SourceEncoding() string            { return c.Encoding }

// MergeOptions returns the merge modes for functions and conditions.
func (c *Configuration) MergeOptions() model.MergeOptions {
	return model.MergeOptions{Functions: c.MergeModeFunctions, Conditions: c.MergeModeConditions}
}

// ExclusionOptions returns the exclusion passes to run on every file.
func (c *Configuration) ExclusionOptions() exclusion.Options {
	return exclusion.Options{
		RespectExclusionMarkers:    !c.NoMarkers,
		ExcludeLinesByPattern:      c.ExcludeLinesByPattern,
		ExcludeBranchesByPattern:   c.ExcludeBranchesByPattern,
		ExcludePatternPrefix:       c.ExcludePatternPrefix,
		ExcludeThrowBranches:       c.ExcludeThrowBranches,
		ExcludeUnreachableBranches: c.ExcludeUnreachableBranches,
		ExcludeFunctionLines:       c.ExcludeFunctionLines,
		ExcludeInternalFunctions:   c.ExcludeInternalFunctions,
		ExcludeNoncodeLines:        c.ExcludeNoncodeLines,
		ExcludeCalls:               !c.Calls,
	}
}
