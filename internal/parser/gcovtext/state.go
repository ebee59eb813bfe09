package gcovtext

import (
	"errors"
	"log/slog"
	"slices"

	"github.com/gcovr/gcovr-sub000/internal/model"
	"github.com/gcovr/gcovr-sub000/internal/utils"
)

// UnknownFunctionName is the function of lines that appear before any
// function line.
const UnknownFunctionName = "<unknown function>"

var errNoPreviousState = errors.New("previous state of parser is nil")

// state is one snapshot of the parser. Transitions never modify a state in
// place, they return a new one. previous is the state to return to at the
// end of a specialization section.
type state struct {
	deferredFunctions []FunctionLine
	functionName      string
	specialization    bool
	lastLine          *model.LineCoverage
	// lines recorded outside of specializations, in order.
	lines      []*model.LineCoverage
	blockID    *int
	recovering bool
	previous   *state
}

func initialState() state {
	return state{functionName: UnknownFunctionName}
}

// save pushes s and returns a fresh state sharing its recorded lines.
func (s state) save() state {
	previous := s
	next := initialState()
	next.previous = &previous
	next.lines = s.lines
	return next
}

// restore pops back to the previous state, keeping the current lines.
func (s state) restore() (state, error) {
	if s.previous == nil {
		return s, errNoPreviousState
	}
	restored := *s.previous
	restored.lines = s.lines
	return restored, nil
}

// builder owns the FileCoverage of one parse. It is the only mutable part
// of the state machine.
type builder struct {
	file           *model.FileCoverage
	sources        model.DataSources
	blockIDWarning model.BlockIDWarning
}

func newBuilder(file *model.FileCoverage) *builder {
	return &builder{file: file, sources: file.DataSources}
}

// transition applies one event to the FileCoverage and returns the next
// state.
func (b *builder) transition(s state, ev Event) (state, error) {
	if line, ok := ev.(SourceLine); ok {
		return b.sourceLine(s, line)
	}
	if s.recovering {
		return s, nil
	}

	switch ev := ev.(type) {
	case FunctionLine:
		s.deferredFunctions = append(slices.Clip(s.deferredFunctions), ev)
		s.functionName = ev.Name
		return s, nil

	case SpecializationNameLine:
		next := s.save()
		next.specialization = true
		return next, nil

	case SpecializationSeparatorLine:
		if s.specialization {
			return s.restore()
		}
		return s, nil

	case BranchLine:
		if s.lastLine == nil {
			return s, nil
		}
		branch := &model.BranchCoverage{
			DataSources:   b.sources,
			BranchNo:      model.Int(ev.BranchNo),
			Count:         ev.Hits,
			Fallthrough:   ev.Annotation == "fallthrough",
			Throw:         ev.Annotation == "throw",
			SourceBlockID: cloneBlockID(s.blockID),
		}
		branch.SourceBlockIDOr0(&b.blockIDWarning)
		_, err := s.lastLine.InsertBranch(branch)
		return s, err

	case CallLine:
		if s.lastLine == nil {
			return s, nil
		}
		sourceBlockID := 0
		if s.blockID != nil {
			sourceBlockID = *s.blockID
		} else {
			b.blockIDWarning.WarnOnce()
		}
		_, err := s.lastLine.InsertCall(&model.CallCoverage{
			DataSources:   b.sources,
			CallNo:        model.Int(ev.CallNo),
			SourceBlockID: sourceBlockID,
			Returned:      ev.Returned,
		})
		return s, err

	case BlockLine:
		s.blockID = model.Int(ev.BlockID)
		return s, nil

	case MetadataLine, UnconditionalLine:
		return s, nil
	}
	panic("gcovtext: unexpected event type")
}

func (b *builder) sourceLine(s state, line SourceLine) (state, error) {
	if line.Extra&Noncode != 0 {
		return s, nil
	}

	if len(s.deferredFunctions) > 0 {
		if err := b.insertFunctions(s.deferredFunctions, line.Lineno); err != nil {
			return s, err
		}
		s.deferredFunctions = nil
	}

	// A specialization following the generic code of a function repeats its
	// lines, which were already attributed to the function before.
	if s.specialization && len(s.lines) > 0 &&
		s.lines[0].Lineno() <= line.Lineno && line.Lineno <= s.lines[len(s.lines)-1].Lineno() {
		for _, linecov := range s.lines {
			if linecov.Lineno() >= line.Lineno {
				slog.Debug("Removing line coverage of function.", "location", linecov.Location(), "function", linecov.ReportFunctionName())
				b.file.RemoveLine(linecov)
			}
		}
		s.lines = nil
	}

	linecov, err := b.file.InsertLine(model.LineSpec{
		DataSources:  b.sources,
		Lineno:       line.Lineno,
		Count:        line.Hits,
		FunctionName: s.functionName,
		MD5:          utils.MD5Hex(line.Code),
	}, model.DefaultMergeOptions)
	if err != nil {
		return s, err
	}

	s.lastLine = linecov
	if !s.specialization {
		s.lines = append(slices.Clip(s.lines), linecov)
	}
	s.recovering = false
	return s, nil
}

func (b *builder) insertFunctions(functions []FunctionLine, lineno int) error {
	for _, fn := range functions {
		_, err := b.file.InsertFunction(model.FunctionSpec{
			DataSources: b.sources,
			MangledName: fn.Name,
			Lineno:      lineno,
			Count:       fn.CallCount,
			Blocks:      fn.BlocksCovered,
		}, model.FunctionMaxLineMergeOptions)
		if err != nil {
			return err
		}
	}
	return nil
}

func cloneBlockID(id *int) *int {
	if id == nil {
		return nil
	}
	return model.Int(*id)
}
