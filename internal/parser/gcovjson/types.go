package gcovjson

// FormatVersion is the only gcov JSON format_version understood.
const FormatVersion = "2"

// document is the root of a gcov JSON intermediate file as written by
// gcov --json-format.
type document struct {
	FormatVersion           any        `json:"format_version"`
	GCCVersion              string     `json:"gcc_version"`
	CurrentWorkingDirectory string     `json:"current_working_directory"`
	DataFile                string     `json:"data_file"`
	Files                   []fileNode `json:"files"`
}

type fileNode struct {
	File      string         `json:"file"`
	Lines     []lineNode     `json:"lines"`
	Functions []functionNode `json:"functions"`
}

type lineNode struct {
	LineNumber      int             `json:"line_number"`
	Count           int64           `json:"count"`
	FunctionName    string          `json:"function_name"`
	UnexecutedBlock bool            `json:"unexecuted_block"`
	BlockIDs        []int           `json:"block_ids"`
	Branches        []branchNode    `json:"branches"`
	Conditions      []conditionNode `json:"conditions"`
	Calls           []callNode      `json:"calls"`
}

type branchNode struct {
	Count              int64 `json:"count"`
	Fallthrough        bool  `json:"fallthrough"`
	Throw              bool  `json:"throw"`
	SourceBlockID      int   `json:"source_block_id"`
	DestinationBlockID int   `json:"destination_block_id"`
}

type conditionNode struct {
	Count           int64 `json:"count"`
	Covered         int   `json:"covered"`
	NotCoveredTrue  []int `json:"not_covered_true"`
	NotCoveredFalse []int `json:"not_covered_false"`
}

type callNode struct {
	SourceBlockID      int `json:"source_block_id"`
	DestinationBlockID int `json:"destination_block_id"`
	Returned           int `json:"returned"`
}

type functionNode struct {
	Name           string `json:"name"`
	DemangledName  string `json:"demangled_name"`
	StartLine      int    `json:"start_line"`
	StartColumn    int    `json:"start_column"`
	EndLine        int    `json:"end_line"`
	EndColumn      int    `json:"end_column"`
	Blocks         int    `json:"blocks"`
	BlocksExecuted int    `json:"blocks_executed"`
	ExecutionCount int    `json:"execution_count"`
}
