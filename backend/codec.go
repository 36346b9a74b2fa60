package backend

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/grafana/statcache/statpoint"
)

// EncodeRequest marshals a Request to the bytes a transport would
// publish.
func EncodeRequest(r Request) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "backend: encode request")
	}
	return b, nil
}

// DecodeDataResponse unmarshals a DataResponse. Callers should run the
// result through Validate before trusting its Stats block; a response
// that fails validation is treated as "no data", never as a hard error.
func DecodeDataResponse(b []byte) (DataResponse, error) {
	var resp DataResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return DataResponse{}, errors.Wrap(err, "backend: decode data response")
	}
	return resp, nil
}

// Validate reports whether resp contains exactly one well-formed Stats
// block. A zero Generation is invalid per the wire contract.
func (resp DataResponse) Validate() error {
	if len(resp.Stats) != 1 {
		return errors.Errorf("backend: expected exactly one Stats block, got %d", len(resp.Stats))
	}
	s := resp.Stats[0]
	if s.Generation == 0 {
		return errors.New("backend: invalid generation 0")
	}
	n := len(s.Times)
	if len(s.Min) != n || len(s.Mean) != n || len(s.Max) != n || len(s.Count) != n {
		return errors.New("backend: stat attribute arrays have mismatched lengths")
	}
	return nil
}

// ParseDataResponse decodes and validates the bytes a transport-backed
// DataSource receives for an AlignedWindows request, converting the
// wire's column-oriented Stats block into the row-oriented points
// fragment.Build consumes. An invalid response is reported as "no
// data" (GenerationMax, no error) rather than propagated as a decode
// failure, matching how the rest of this package treats a malformed or
// missing response.
func ParseDataResponse(b []byte) ([]statpoint.StatPoint, uint64, error) {
	resp, err := DecodeDataResponse(b)
	if err != nil {
		return nil, GenerationMax, err
	}
	if err := resp.Validate(); err != nil {
		return nil, GenerationMax, nil
	}

	s := resp.Stats[0]
	points := make([]statpoint.StatPoint, len(s.Times))
	for i := range s.Times {
		points[i] = statpoint.StatPoint{
			Time:  s.Times[i],
			Min:   s.Min[i],
			Mean:  s.Mean[i],
			Max:   s.Max[i],
			Count: s.Count[i],
		}
	}
	return points, s.Generation, nil
}

// DecodeChangedRangesResponse unmarshals a ChangedRangesResponse.
func DecodeChangedRangesResponse(b []byte) (ChangedRangesResponse, error) {
	var resp ChangedRangesResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return ChangedRangesResponse{}, errors.Wrap(err, "backend: decode changed-ranges response")
	}
	return resp, nil
}

// DecodeErrorResponse unmarshals an ErrorResponse.
func DecodeErrorResponse(b []byte) (ErrorResponse, error) {
	var resp ErrorResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return ErrorResponse{}, errors.Wrap(err, "backend: decode error response")
	}
	return resp, nil
}
