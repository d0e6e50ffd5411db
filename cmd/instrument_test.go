package cmd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"tia.dev/pkg/tia/internal/domain"
	domainmocks "tia.dev/pkg/tia/internal/domain/mocks"
)

func TestInstrumentCmd_Diff(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)

	cmd := newRootCmd()
	cmd.AddCommand(newInstrumentCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	originalWorkflow := workflow
	workflow = mockWorkflow
	defer func() { workflow = originalWorkflow }()

	mockWorkflow.EXPECT().Instrument(mock.Anything, mock.MatchedBy(func(args domain.InstrumentArgs) bool {
		return args.Diff && len(args.Paths) == 1
	})).Return(nil)

	cmd.SetArgs([]string{"instrument", "--diff", "./..."})
	require.NoError(t, cmd.Execute())
}

func TestInstrumentCmd_PropagatesError(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)

	cmd := newRootCmd()
	cmd.AddCommand(newInstrumentCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	originalWorkflow := workflow
	workflow = mockWorkflow
	defer func() { workflow = originalWorkflow }()

	failure := errors.New("boom")
	mockWorkflow.EXPECT().Instrument(mock.Anything, mock.Anything).Return(failure)

	cmd.SetArgs([]string{"instrument"})
	require.ErrorIs(t, cmd.Execute(), failure)
}
