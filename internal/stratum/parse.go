package stratum

import (
	"encoding/json"
	"fmt"
)

// parseNotifyParams decodes the 9 positional mining.notify parameters:
// job_id, prevhash, coinb1, coinb2, merkle_branches, version, nbits,
// ntime, clean_jobs.
func parseNotifyParams(args []interface{}) (NotifyParams, error) {
	if len(args) != 9 {
		return NotifyParams{}, fmt.Errorf("stratum: notify: expected 9 params, got %d", len(args))
	}

	jobID, ok := args[0].(string)
	if !ok {
		return NotifyParams{}, fmt.Errorf("stratum: notify: job_id not a string")
	}
	prevHash, ok := args[1].(string)
	if !ok {
		return NotifyParams{}, fmt.Errorf("stratum: notify: prevhash not a string")
	}
	coinb1, ok := args[2].(string)
	if !ok {
		return NotifyParams{}, fmt.Errorf("stratum: notify: coinb1 not a string")
	}
	coinb2, ok := args[3].(string)
	if !ok {
		return NotifyParams{}, fmt.Errorf("stratum: notify: coinb2 not a string")
	}
	branchesRaw, ok := args[4].([]interface{})
	if !ok {
		return NotifyParams{}, fmt.Errorf("stratum: notify: merkle_branches not an array")
	}
	branches := make([]string, len(branchesRaw))
	for i, b := range branchesRaw {
		s, ok := b.(string)
		if !ok {
			return NotifyParams{}, fmt.Errorf("stratum: notify: merkle branch %d not a string", i)
		}
		branches[i] = s
	}
	version, ok := args[5].(string)
	if !ok {
		return NotifyParams{}, fmt.Errorf("stratum: notify: version not a string")
	}
	nbits, ok := args[6].(string)
	if !ok {
		return NotifyParams{}, fmt.Errorf("stratum: notify: nbits not a string")
	}
	ntime, ok := args[7].(string)
	if !ok {
		return NotifyParams{}, fmt.Errorf("stratum: notify: ntime not a string")
	}
	cleanJobs, _ := args[8].(bool)

	return NotifyParams{
		JobID:          jobID,
		PrevHash:       prevHash,
		Coinb1:         coinb1,
		Coinb2:         coinb2,
		MerkleBranches: branches,
		Version:        version,
		Nbits:          nbits,
		Ntime:          ntime,
		CleanJobs:      cleanJobs,
	}, nil
}

// parseSubscribeResult decodes the mining.subscribe reply shape:
//
//	[ [ [method, subscription_id], ... ], extranonce1, extranonce2_size ]
//
// The subscription id is taken from the second element of the first
// inner tuple, matching the donor's parsing of the nested array.
func parseSubscribeResult(result json.RawMessage) (id string, extraNonce1 string, extraNonce2Size int, err error) {
	var top []json.RawMessage
	if err := json.Unmarshal(result, &top); err != nil || len(top) != 3 {
		return "", "", 0, fmt.Errorf("stratum: subscribe result: expected a 3-element array: %w", err)
	}

	var tuples [][]interface{}
	if err := json.Unmarshal(top[0], &tuples); err != nil || len(tuples) == 0 || len(tuples[0]) != 2 {
		return "", "", 0, fmt.Errorf("stratum: subscribe result: malformed subscription details: %w", err)
	}
	subID, ok := tuples[0][1].(string)
	if !ok {
		return "", "", 0, fmt.Errorf("stratum: subscribe result: subscription id not a string")
	}

	if err := json.Unmarshal(top[1], &extraNonce1); err != nil {
		return "", "", 0, fmt.Errorf("stratum: subscribe result: extranonce1 not a string: %w", err)
	}

	var size float64
	if err := json.Unmarshal(top[2], &size); err != nil {
		return "", "", 0, fmt.Errorf("stratum: subscribe result: extranonce2_size not a number: %w", err)
	}

	return subID, extraNonce1, int(size), nil
}
