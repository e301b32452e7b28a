// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package journal

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/rotisserie/eris"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	// deterministic bytes for the same ticket
	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("journal: cbor encoder initialization failed: " + err.Error())
	}

	// metadata is opaque and must come back as map[string]interface{}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]interface{}(nil)),
	}.DecMode()
	if err != nil {
		panic("journal: cbor decoder initialization failed: " + err.Error())
	}
}

func encode(ticket models.Ticket) ([]byte, error) {
	body, err := encMode.Marshal(ticket)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to encode ticket %s", ticket.TicketID)
	}
	return body, nil
}

func decode(body []byte) (models.Ticket, error) {
	var ticket models.Ticket
	if err := decMode.Unmarshal(body, &ticket); err != nil {
		return models.Ticket{}, eris.Wrap(err, "failed to decode journal record")
	}
	return ticket, nil
}
