package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"tia.dev/pkg/tia/internal/domain"
	domainmocks "tia.dev/pkg/tia/internal/domain/mocks"
	m "tia.dev/pkg/tia/internal/model"
)

func TestListCmd_PassesSelection(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)

	cmd := newRootCmd()
	cmd.AddCommand(newListCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	originalWorkflow := workflow
	workflow = mockWorkflow
	defer func() { workflow = originalWorkflow }()

	mockWorkflow.EXPECT().List(mock.Anything, mock.MatchedBy(func(args domain.ListArgs) bool {
		return len(args.Paths) == 2 &&
			args.Paths[0] == m.Path("./cmd") &&
			args.Threads == 3 &&
			len(args.Selector.Include) == 1 &&
			args.Selector.Include[0] == "internal/**" &&
			args.Selector.Tests &&
			args.MaxPaths == 128
	})).Return(nil)

	cmd.SetArgs([]string{"list", "-p", "3", "--include", "internal/**", "--tests", "--max-paths", "128", "./cmd", "./internal/..."})
	err := cmd.Execute()
	require.NoError(t, err)
}

func TestListCmd_Defaults(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)

	cmd := newRootCmd()
	cmd.AddCommand(newListCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	originalWorkflow := workflow
	workflow = mockWorkflow
	defer func() { workflow = originalWorkflow }()

	mockWorkflow.EXPECT().List(mock.Anything, mock.MatchedBy(func(args domain.ListArgs) bool {
		return len(args.Paths) == 0 &&
			args.MaxPaths == domain.DefaultMaxPaths &&
			!args.Selector.Tests
	})).Return(nil)

	cmd.SetArgs([]string{"list"})
	require.NoError(t, cmd.Execute())
}
