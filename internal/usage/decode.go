package usage

import (
	"encoding/json"
	"fmt"
)

// DecodeSignal narrows a host payload into a concrete Signal using its
// "type" field. Tick is internal and is not accepted from hosts.
func DecodeSignal(data []byte) (Signal, error) {
	var envelope struct {
		Type SignalType `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("invalid signal payload: %w", err)
	}

	switch envelope.Type {
	case SignalTabActivated:
		return narrow(decodeAs[TabActivated](data))
	case SignalTabNavigated:
		return narrow(decodeAs[TabNavigated](data))
	case SignalIconChanged:
		return narrow(decodeAs[IconChanged](data))
	case SignalTabClosed:
		return narrow(decodeAs[TabClosed](data))
	case SignalWindowFocusChanged:
		return narrow(decodeAs[WindowFocusChanged](data))
	case SignalIdleStateChanged:
		sig, err := decodeAs[IdleStateChanged](data)
		if err != nil {
			return nil, err
		}
		if !sig.State.Valid() {
			return nil, fmt.Errorf("unknown idle state: %q", sig.State)
		}
		return sig, nil
	case SignalHostSnapshot:
		sig, err := decodeAs[HostSnapshot](data)
		if err != nil {
			return nil, err
		}
		if sig.Idle != "" && !sig.Idle.Valid() {
			return nil, fmt.Errorf("unknown idle state: %q", sig.Idle)
		}
		return sig, nil
	case "":
		return nil, fmt.Errorf("signal type is required")
	default:
		return nil, fmt.Errorf("unsupported signal type: %q", envelope.Type)
	}
}

func decodeAs[T Signal](data []byte) (T, error) {
	var sig T
	if err := json.Unmarshal(data, &sig); err != nil {
		var zero T
		return zero, fmt.Errorf("invalid %s payload: %w", zero.Type(), err)
	}
	return sig, nil
}

func narrow[T Signal](sig T, err error) (Signal, error) {
	if err != nil {
		return nil, err
	}
	return sig, nil
}
