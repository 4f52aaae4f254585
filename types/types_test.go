package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mailprobe/mailprobe/types"
)

func TestOutcomeRetryable(t *testing.T) {
	retryable := []types.Outcome{types.OutcomeTimeout, types.OutcomeConnectionRefused}
	for _, o := range retryable {
		assert.True(t, o.Retryable(), string(o))
	}

	terminal := []types.Outcome{
		types.OutcomeValid, types.OutcomeInvalidSyntax, types.OutcomeNoMX,
		types.OutcomeMailboxNotFound, types.OutcomeCatchAll, types.OutcomeSMTPError,
		types.OutcomeGreylisted, types.OutcomeServerUnavailable,
	}
	for _, o := range terminal {
		assert.False(t, o.Retryable(), string(o))
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, types.FailureKind(""), types.KindOf(types.OutcomeValid))
	assert.Equal(t, types.FailureKind(""), types.KindOf(types.OutcomeCatchAll))
	assert.Equal(t, types.FailTimeout, types.KindOf(types.OutcomeTimeout))
	assert.Equal(t, types.FailRefused, types.KindOf(types.OutcomeConnectionRefused))
	assert.Equal(t, types.FailOther, types.KindOf(types.OutcomeGreylisted))
	assert.Equal(t, types.FailOther, types.KindOf(types.OutcomeMailboxNotFound))
}
