package discovery

import (
	"fmt"

	"avaneesh/pnio-go/pkg/dcp"
	"avaneesh/pnio-go/pkg/ethernet"
	"avaneesh/pnio-go/pkg/types"
)

// setOp is one validated block of a Set request
type setOp struct {
	key       dcp.Key
	permanent bool
	apply     func(id *types.StationIdentity)
	signal    bool
	reset     bool
	err       *types.BlockError
}

// handleSet validates every block before applying any of them. One invalid
// block rejects the whole request: it reports its own error, the others
// report OptionNotSet.
func (m *Machine) handleSet(h ethernet.Header, pdu *dcp.PDU) error {
	m.state = StateProcessingSet
	defer func() { m.state = m.idleState() }()

	ops := make([]setOp, 0, len(pdu.Blocks))
	failed := false
	for _, b := range pdu.Blocks {
		qualifier, value, err := dcp.SplitPrefixed(b)
		if err != nil {
			m.stats.malformed.Add(1)
			m.logger.Debug("DCP: dropped Set from %s: %v", h.Source, err)
			return err
		}
		op := m.validate(b.Key(), value)
		op.permanent = qualifier&dcp.QualifierPermanent != 0
		if op.err != nil {
			failed = true
		}
		ops = append(ops, op)
	}

	if !failed {
		if err := m.commit(ops); err != nil {
			failed = true
			for i := range ops {
				ops[i].err = &types.BlockError{Option: ops[i].key.Option(), Suboption: ops[i].key.Suboption(), Code: types.BlockErrorResource, Err: err}
			}
		}
	}

	blocks := make([]dcp.Block, len(ops))
	for i, op := range ops {
		code := types.BlockErrorNone
		switch {
		case op.err != nil:
			code = op.err.Code
			m.logger.Warn("DCP: Set from %s refused: %v", h.Source, op.err)
		case failed:
			code = types.BlockErrorOptionNotSet
		}
		blocks[i] = dcp.ControlResponse(op.key, code)
	}
	if failed {
		m.stats.setRejected.Add(1)
	} else {
		m.stats.setAccepted.Add(1)
	}
	return m.send(h.Reply(m.identity.MAC), pdu.Response(dcp.ServiceTypeResponseSuccess, blocks))
}

func (m *Machine) idleState() State {
	if m.pending.Len() > 0 {
		return StateAwaitingMulticastWindow
	}
	return StateIdle
}

func blockErr(k dcp.Key, code types.BlockErrorCode, err error) *types.BlockError {
	return &types.BlockError{Option: k.Option(), Suboption: k.Suboption(), Code: code, Err: err}
}

// validate checks one block and prepares its effect without touching the identity
func (m *Machine) validate(k dcp.Key, value []byte) setOp {
	op := setOp{key: k}
	if !settable(k) || !m.supports(k) {
		op.err = blockErr(k, types.BlockErrorOptionNotSupported, types.ErrUnsupportedOption)
		return op
	}

	switch k {
	case dcp.KeyNameOfStation, dcp.KeyIPParameter, dcp.KeyFullIPSuite, dcp.KeyFactoryReset, dcp.KeyResetToFactory:
		if !m.config.AllowSetDuringAR && m.activeAR() {
			op.err = blockErr(k, types.BlockErrorSetNotPossible, fmt.Errorf("%w: application relationship active", types.ErrValidationFailed))
			return op
		}
	}

	switch k {
	case dcp.KeyNameOfStation:
		name, err := dcp.DecodeName(value)
		if err == nil {
			err = types.ValidateStationName(name)
		}
		if err != nil {
			op.err = blockErr(k, types.BlockErrorSetNotPossible, err)
			return op
		}
		op.apply = func(id *types.StationIdentity) { id.StationName = name }

	case dcp.KeyIPParameter, dcp.KeyFullIPSuite:
		var cfg types.IPConfig
		var err error
		if k == dcp.KeyIPParameter {
			cfg, err = dcp.DecodeIPParameter(value)
		} else {
			cfg, _, err = dcp.DecodeFullIPSuite(value)
		}
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			op.err = blockErr(k, types.BlockErrorSetNotPossible, err)
			return op
		}
		op.apply = func(id *types.StationIdentity) { id.IP = cfg }

	case dcp.KeyControlSignal:
		v, err := dcp.DecodeSignal(value)
		if err == nil && v != dcp.SignalFlashOnce {
			err = fmt.Errorf("%w: signal value 0x%04X", types.ErrValidationFailed, v)
		}
		if err != nil {
			op.err = blockErr(k, types.BlockErrorSetNotPossible, err)
			return op
		}
		op.signal = true

	case dcp.KeyFactoryReset, dcp.KeyResetToFactory:
		if m.persister == nil {
			op.err = blockErr(k, types.BlockErrorResource, fmt.Errorf("no persistence configured"))
			return op
		}
		op.reset = true

	case dcp.KeyControlStart, dcp.KeyControlStop:
		// Transaction brackets; nothing to apply.
	}
	return op
}

// commit applies validated operations to a copy of the identity, persists
// it when asked to and only then swaps it in.
func (m *Machine) commit(ops []setOp) error {
	updated := *m.identity
	reset, persist, signal := false, false, false
	for _, op := range ops {
		if op.reset {
			reset = true
			mac := updated.MAC
			updated = m.config.Factory
			updated.MAC = mac
		}
		if op.apply != nil {
			op.apply(&updated)
			persist = persist || op.permanent
		}
		signal = signal || op.signal
	}

	if reset || persist {
		if m.persister == nil {
			return fmt.Errorf("no persistence configured")
		}
		if reset {
			if err := m.persister.Reset(); err != nil {
				return fmt.Errorf("factory reset: %w", err)
			}
		}
		if persist {
			if err := m.persister.Save(updated); err != nil {
				return fmt.Errorf("save identity: %w", err)
			}
		}
	}

	old := *m.identity
	*m.identity = updated
	if old != updated {
		m.logger.Info("DCP: identity changed: %s", m.identity)
		if m.onChange != nil {
			m.onChange(old, updated)
		}
	}
	if signal && m.indicator != nil {
		m.indicator.Signal()
	}
	return nil
}
