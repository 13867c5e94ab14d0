// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// mutationResponse is the part of a placement response the engine
// reads. Every level is a pointer so that absence is detectable.
type mutationResponse struct {
	Errors json.RawMessage `json:"errors"`
	Data   *struct {
		Act *struct {
			Data []struct {
				Data *struct {
					NextAvailablePixelTimestamp *float64 `json:"nextAvailablePixelTimestamp"`
				} `json:"data"`
			} `json:"data"`
		} `json:"act"`
	} `json:"data"`
}

type responseError struct {
	Message    string `json:"message"`
	Extensions *struct {
		NextAvailablePixelTs *float64 `json:"nextAvailablePixelTs"`
	} `json:"extensions"`
}

// cooldown is an interpreted placement response: whether the pixel was
// placed, and when the next placement is allowed.
type cooldown struct {
	placed    bool
	available time.Time
	message   string
}

// interpretResponse validates the response structure. A response with
// an errors member is a rejection carrying the cooldown end; otherwise
// the act result carries it. Anything else is an error.
func interpretResponse(body []byte) (cooldown, error) {
	var response mutationResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return cooldown{}, fmt.Errorf("decoding response: %w", err)
	}

	if len(response.Errors) > 0 && !bytes.Equal(response.Errors, []byte("null")) {
		var errs []responseError
		if err := json.Unmarshal(response.Errors, &errs); err != nil {
			return cooldown{}, fmt.Errorf("decoding errors: %w", err)
		}
		if len(errs) == 0 {
			return cooldown{}, errors.New("errors array is empty")
		}
		first := errs[0]
		if first.Extensions == nil || first.Extensions.NextAvailablePixelTs == nil {
			return cooldown{}, fmt.Errorf("error without nextAvailablePixelTs: %q", first.Message)
		}
		available, err := fromMillis(*first.Extensions.NextAvailablePixelTs)
		if err != nil {
			return cooldown{}, err
		}
		return cooldown{available: available, message: first.Message}, nil
	}

	if response.Data == nil || response.Data.Act == nil {
		return cooldown{}, errors.New("response has no data.act")
	}
	if len(response.Data.Act.Data) == 0 {
		return cooldown{}, errors.New("data.act.data is empty")
	}
	result := response.Data.Act.Data[0].Data
	if result == nil || result.NextAvailablePixelTimestamp == nil {
		return cooldown{}, errors.New("data.act.data[0] has no nextAvailablePixelTimestamp")
	}
	available, err := fromMillis(*result.NextAvailablePixelTimestamp)
	if err != nil {
		return cooldown{}, err
	}
	return cooldown{placed: true, available: available}, nil
}

// maxTimestampMillis rejects values far outside any plausible cooldown.
const maxTimestampMillis = 1e15

func fromMillis(ms float64) (time.Time, error) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms < 0 || ms > maxTimestampMillis {
		return time.Time{}, fmt.Errorf("timestamp %v out of range", ms)
	}
	return time.UnixMilli(int64(ms)), nil
}
