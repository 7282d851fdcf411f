package services

import (
	domainerrors "arbor/contexts/distribution-network/hierarchy-service/domain/errors"
)

const (
	ViolationDownstreamLimitation = "downstream_limitation"
	ViolationUpstreamLimitation   = "upstream_limitation"
)

// Violation is a structured promotion rejection. It is a validation outcome
// surfaced to callers, not an error in the flow.
type Violation struct {
	Code      string
	Message   string
	LeaderIDs []string
}

// EvaluateLeaderPromotion enforces the leader placement constraints:
// the candidate's full downstream subtree must contain no active leader, and
// its upstream chain may contain at most one. activeLeaders holds the
// distributor ids of approved, active leader roles.
func EvaluateLeaderPromotion(
	index *Index,
	activeLeaders map[string]bool,
	distributorID string,
) (*Violation, error) {
	if _, ok := index.Get(distributorID); !ok {
		return nil, domainerrors.ErrDistributorNotFound
	}

	downstream := index.Downstream(distributorID, 0)
	conflicting := make([]string, 0)
	for _, node := range downstream {
		if activeLeaders[node.DistributorID] {
			conflicting = append(conflicting, node.DistributorID)
		}
	}
	if len(conflicting) > 0 {
		return &Violation{
			Code:      ViolationDownstreamLimitation,
			Message:   "downstream subtree already contains an active leader",
			LeaderIDs: conflicting,
		}, nil
	}

	upstream, err := index.Upstream(distributorID, 0)
	if err != nil {
		return nil, err
	}
	upstreamLeaders := make([]string, 0)
	for _, node := range upstream {
		if activeLeaders[node.DistributorID] {
			upstreamLeaders = append(upstreamLeaders, node.DistributorID)
		}
	}
	if len(upstreamLeaders) >= 2 {
		return &Violation{
			Code:      ViolationUpstreamLimitation,
			Message:   "upstream chain already contains two active leaders",
			LeaderIDs: upstreamLeaders,
		}, nil
	}

	return nil, nil
}
