package diag

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListRecordsLocation(t *testing.T) {
	l := NewList("top{sch}")
	l.AtArc(CodeBusWidthConflict, 7, "width %d vs %d", 4, 8)
	l.AtNode(CodeWireConnectorArcs, 3, "3 arcs")
	l.Add(CodeHierarchyCycle, "loop")

	items := l.Items()
	require.Len(t, items, 3)
	assert.Equal(t, 7, items[0].Arc)
	assert.Equal(t, -1, items[0].Node)
	assert.Equal(t, "width 4 vs 8", items[0].Message)
	assert.Equal(t, SeverityError, items[1].Severity)
	assert.Equal(t, 1, l.Count(CodeHierarchyCycle))
	assert.Contains(t, items[0].String(), "arc 7")
}

func TestApplyRemapsAndDrops(t *testing.T) {
	l := NewList("c")
	l.Add(CodeBusWidthConflict, "a")
	l.Add(CodeBadNetName, "b")

	out := Apply(l.Items(), func(code string, def Severity) Severity {
		if code == CodeBadNetName {
			return SeverityOff
		}
		return SeverityError
	})
	require.Len(t, out, 1)
	assert.Equal(t, SeverityError, out[0].Severity)
	assert.True(t, HasErrors(out))
}

func TestFatalErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("compute: %w", Fatal("inv{sch}", "arc", 12, ErrUnresolvedPort, "head port %q", "zz"))

	var fe *FatalError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 12, fe.ID)
	assert.True(t, errors.Is(err, ErrUnresolvedPort))
	assert.True(t, IsFatal(err))
	assert.Contains(t, err.Error(), "arc 12")
}

func TestAsDiagnostic(t *testing.T) {
	cycle := Fatal("a{sch}", "cell", 0, ErrCycle, "a{sch} -> b{sch} -> a{sch}")
	d := AsDiagnostic("a{sch}", cycle)
	assert.Equal(t, CodeHierarchyCycle, d.Code)
	assert.Equal(t, SeverityError, d.Severity)

	port := Fatal("inv{sch}", "arc", 4, ErrUnresolvedPort, "tail port %q", "q")
	d = AsDiagnostic("inv{sch}", port)
	assert.Equal(t, CodeAnalysisFailed, d.Code)
	assert.Equal(t, 4, d.Arc)
	assert.Equal(t, -1, d.Node)

	// location ids of a sub-cell failure do not belong to the parent
	d = AsDiagnostic("top{sch}", fmt.Errorf("sub-cell: %w", port))
	assert.Equal(t, -1, d.Arc)
}
