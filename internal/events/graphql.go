package events

import "time"

// GraphQLStart is emitted before executing a GraphQL operation.
type GraphQLStart struct {
	Query         string
	OperationName string
}

// GraphQLFinish is emitted after executing a GraphQL operation.
type GraphQLFinish struct {
	Query         string
	OperationName string
	OperationType string
	Errors        []error
	Duration      time.Duration
}

// PlanBuilt is emitted when a query is planned rather than served from the
// plan cache.
type PlanBuilt struct {
	OperationName string
	Fields        int
	Complexity    int
	Duration      time.Duration
}
