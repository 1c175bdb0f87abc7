package dcp

// NewIdentifyRequest builds an Identify request with the given filter blocks.
// Without filters it identifies all devices.
func NewIdentifyRequest(xid uint32, responseDelay uint16, filters ...Block) *PDU {
	if len(filters) == 0 {
		filters = []Block{FilterBlock(KeyAll, nil)}
	}
	return &PDU{
		FrameID:       FrameIDIdentifyReq,
		ServiceID:     ServiceIdentify,
		ServiceType:   ServiceTypeRequest,
		Xid:           xid,
		ResponseDelay: responseDelay,
		Blocks:        filters,
	}
}

// NewGetRequest builds a Get request for the given options
func NewGetRequest(xid uint32, keys ...Key) *PDU {
	blocks := make([]Block, len(keys))
	for i, k := range keys {
		blocks[i] = Block{Option: k.Option(), Suboption: k.Suboption()}
	}
	return &PDU{
		FrameID:     FrameIDGetSet,
		ServiceID:   ServiceGet,
		ServiceType: ServiceTypeRequest,
		Xid:         xid,
		Blocks:      blocks,
	}
}

// NewSetRequest builds a Set request from blocks made with SetBlock
func NewSetRequest(xid uint32, blocks ...Block) *PDU {
	return &PDU{
		FrameID:     FrameIDGetSet,
		ServiceID:   ServiceSet,
		ServiceType: ServiceTypeRequest,
		Xid:         xid,
		Blocks:      blocks,
	}
}

// NewHello builds a Hello request announcing the station
func NewHello(xid uint32, blocks ...Block) *PDU {
	return &PDU{
		FrameID:     FrameIDHello,
		ServiceID:   ServiceHello,
		ServiceType: ServiceTypeRequest,
		Xid:         xid,
		Blocks:      blocks,
	}
}

// Response builds the response skeleton for request p
func (p *PDU) Response(serviceType ServiceType, blocks []Block) *PDU {
	frameID := p.FrameID
	if frameID == FrameIDIdentifyReq {
		frameID = FrameIDIdentifyRsp
	}
	return &PDU{
		FrameID:     frameID,
		ServiceID:   p.ServiceID,
		ServiceType: serviceType,
		Xid:         p.Xid,
		Blocks:      blocks,
	}
}
