package interchange

// FormatVersion is written to and required in gcovr/format_version.
const FormatVersion = "0.14"

// Document is the root of a gcovr JSON file.
type Document struct {
	FormatVersion any    `json:"gcovr/format_version"`
	Files         []File `json:"files"`
}

type File struct {
	File        string     `json:"file"`
	Lines       []Line     `json:"lines"`
	Functions   []Function `json:"functions"`
	DataSources [][]string `json:"gcovr/data_sources,omitempty"`
}

type Line struct {
	LineNumber   int         `json:"line_number"`
	FunctionName string      `json:"function_name,omitempty"`
	BlockIDs     []int       `json:"block_ids,omitempty"`
	Count        int         `json:"count"`
	Branches     []Branch    `json:"branches"`
	Conditions   []Condition `json:"conditions,omitempty"`
	Decision     *Decision   `json:"gcovr/decision,omitempty"`
	Calls        []Call      `json:"calls,omitempty"`
	MD5          string      `json:"gcovr/md5,omitempty"`
	Excluded     bool        `json:"gcovr/excluded,omitempty"`
	DataSources  [][]string  `json:"gcovr/data_sources,omitempty"`
}

type Branch struct {
	BranchNo           *int       `json:"branchno,omitempty"`
	Count              int        `json:"count"`
	Fallthrough        bool       `json:"fallthrough"`
	Throw              bool       `json:"throw"`
	SourceBlockID      *int       `json:"source_block_id,omitempty"`
	DestinationBlockID *int       `json:"destination_block_id,omitempty"`
	Excluded           bool       `json:"gcovr/excluded,omitempty"`
	DataSources        [][]string `json:"gcovr/data_sources,omitempty"`
}

type Condition struct {
	ConditionNo     int        `json:"conditionno"`
	Count           int        `json:"count"`
	Covered         int        `json:"covered"`
	NotCoveredFalse []int      `json:"not_covered_false"`
	NotCoveredTrue  []int      `json:"not_covered_true"`
	Excluded        bool       `json:"gcovr/excluded,omitempty"`
	DataSources     [][]string `json:"gcovr/data_sources,omitempty"`
}

// Decision types.
const (
	DecisionUncheckable = "uncheckable"
	DecisionConditional = "conditional"
	DecisionSwitch      = "switch"
)

type Decision struct {
	Type        string     `json:"type"`
	CountTrue   *int       `json:"count_true,omitempty"`
	CountFalse  *int       `json:"count_false,omitempty"`
	Count       *int       `json:"count,omitempty"`
	DataSources [][]string `json:"gcovr/data_sources,omitempty"`
}

type Call struct {
	CallNo             *int       `json:"callno,omitempty"`
	SourceBlockID      int        `json:"source_block_id"`
	DestinationBlockID *int       `json:"destination_block_id,omitempty"`
	Returned           int        `json:"returned"`
	Excluded           bool       `json:"gcovr/excluded,omitempty"`
	DataSources        [][]string `json:"gcovr/data_sources,omitempty"`
}

// Function is the coverage of a function on one line. A function found on
// several lines is written as several entries.
type Function struct {
	Name           string     `json:"name,omitempty"`
	DemangledName  string     `json:"demangled_name,omitempty"`
	Lineno         int        `json:"lineno"`
	ExecutionCount int        `json:"execution_count"`
	BlocksPercent  float64    `json:"blocks_percent"`
	Pos            []string   `json:"pos,omitempty"`
	Excluded       bool       `json:"gcovr/excluded,omitempty"`
	DataSources    [][]string `json:"gcovr/data_sources,omitempty"`
}
