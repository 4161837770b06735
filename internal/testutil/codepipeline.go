package testutil

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
)

// MockCodePipeline records job result calls.
type MockCodePipeline struct {
	mu      sync.Mutex
	success []*codepipeline.PutJobSuccessResultInput
	failure []*codepipeline.PutJobFailureResultInput

	// Err is returned from every call when set.
	Err error
}

// PutJobSuccessResult records in.
func (m *MockCodePipeline) PutJobSuccessResult(_ context.Context, in *codepipeline.PutJobSuccessResultInput, _ ...func(*codepipeline.Options)) (*codepipeline.PutJobSuccessResultOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.success = append(m.success, in)
	if m.Err != nil {
		return nil, m.Err
	}
	return &codepipeline.PutJobSuccessResultOutput{}, nil
}

// PutJobFailureResult records in.
func (m *MockCodePipeline) PutJobFailureResult(_ context.Context, in *codepipeline.PutJobFailureResultInput, _ ...func(*codepipeline.Options)) (*codepipeline.PutJobFailureResultOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = append(m.failure, in)
	if m.Err != nil {
		return nil, m.Err
	}
	return &codepipeline.PutJobFailureResultOutput{}, nil
}

// Successes returns the recorded success calls.
func (m *MockCodePipeline) Successes() []*codepipeline.PutJobSuccessResultInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*codepipeline.PutJobSuccessResultInput(nil), m.success...)
}

// Failures returns the recorded failure calls.
func (m *MockCodePipeline) Failures() []*codepipeline.PutJobFailureResultInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*codepipeline.PutJobFailureResultInput(nil), m.failure...)
}

// Reports returns the total number of recorded calls.
func (m *MockCodePipeline) Reports() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.success) + len(m.failure)
}
