package transcript

// Fixed tag numbers per transcript kind. These are part of the wire
// contract (spec.md §4.1) and frozen at v1; never renumber a released tag.
const (
	tagOperatorID      Tag = 1
	tagOperatorSignPub Tag = 2
	tagOperatorKexPub  Tag = 3
	tagDeviceID        Tag = 4
	tagCreatedAt       Tag = 5
	tagRequestSAS      Tag = 6
)

const (
	tagEmbeddedFields    Tag = 1
	tagDeviceSignPubSAS  Tag = 2
	tagOperatorSignPubSAS Tag = 3
	tagCreatedAtSAS      Tag = 4
	tagInviteExpiresAt   Tag = 5
)

const (
	tagSessionID          Tag = 1
	tagOperatorIDBind     Tag = 2
	tagDeviceIDBind       Tag = 3
	tagTicketBindingNonce Tag = 4
)

const (
	tagEnvelopeID    Tag = 1
	tagEnvCreatedAt  Tag = 2
	tagSenderID      Tag = 3
	tagMsgType       Tag = 4
	tagRecipientIDs  Tag = 5
)

// PairProofInputV1 builds the "zrc_pair_proof_v1" transcript consumed as the
// HMAC-SHA256 message for a PairRequest's pair_proof field.
func PairProofInputV1(operatorID, operatorSignPub, operatorKexPub, deviceID []byte, createdAt uint64) []byte {
	b := New("zrc_pair_proof_v1")
	b.Bytes(tagOperatorID, operatorID)
	b.Bytes(tagOperatorSignPub, operatorSignPub)
	b.Bytes(tagOperatorKexPub, operatorKexPub)
	b.Bytes(tagDeviceID, deviceID)
	b.Uint64(tagCreatedAt, createdAt)
	return b.Build()
}

// PairRequestFieldsV1 builds the "zrc_pair_request_fields_v1" transcript:
// the pair-proof input plus the request_sas bit.
func PairRequestFieldsV1(operatorID, operatorSignPub, operatorKexPub, deviceID []byte, createdAt uint64, requestSAS bool) []byte {
	b := New("zrc_pair_request_fields_v1")
	b.Bytes(tagOperatorID, operatorID)
	b.Bytes(tagOperatorSignPub, operatorSignPub)
	b.Bytes(tagOperatorKexPub, operatorKexPub)
	b.Bytes(tagDeviceID, deviceID)
	b.Uint64(tagCreatedAt, createdAt)
	b.Bool(tagRequestSAS, requestSAS)
	return b.Build()
}

// PairRequestFieldsWithoutProof builds the same field set as
// PairRequestFieldsV1 but is exposed separately because the SAS transcript
// embeds it under its own tag rather than the pair-proof fields directly.
func PairRequestFieldsWithoutProof(operatorID, operatorSignPub, operatorKexPub, deviceID []byte, createdAt uint64, requestSAS bool) []byte {
	return PairRequestFieldsV1(operatorID, operatorSignPub, operatorKexPub, deviceID, createdAt, requestSAS)
}

// PairSASV1 builds the "zrc_pair_sas_v1" transcript used to compute the
// 6-digit Short Authentication String shown to both users.
func PairSASV1(requestFieldsWithoutProof, operatorSignPub, deviceSignPub []byte, createdAt, inviteExpiresAt uint64) []byte {
	b := New("zrc_pair_sas_v1")
	b.Bytes(tagEmbeddedFields, requestFieldsWithoutProof)
	b.Bytes(tagOperatorSignPubSAS, operatorSignPub)
	b.Bytes(tagDeviceSignPubSAS, deviceSignPub)
	b.Uint64(tagCreatedAtSAS, createdAt)
	b.Uint64(tagInviteExpiresAt, inviteExpiresAt)
	return b.Build()
}

// TicketBindV1 builds the "zrc_ticket_bind_v1" transcript hashed to produce
// a session ticket's session_binding field.
func TicketBindV1(sessionID, operatorID, deviceID, ticketBindingNonce []byte) []byte {
	b := New("zrc_ticket_bind_v1")
	b.Bytes(tagSessionID, sessionID)
	b.Bytes(tagOperatorIDBind, operatorID)
	b.Bytes(tagDeviceIDBind, deviceID)
	b.Bytes(tagTicketBindingNonce, ticketBindingNonce)
	return b.Build()
}

// EnvelopeAADV1 builds the "zrc_env_aad_v1" transcript used as an
// envelope's AAD and recomputed by the opener for byte-equality checking.
func EnvelopeAADV1(envelopeID []byte, createdAt uint64, senderID []byte, msgType string, recipientIDs [][]byte) []byte {
	b := New("zrc_env_aad_v1")
	b.Bytes(tagEnvelopeID, envelopeID)
	b.Uint64(tagEnvCreatedAt, createdAt)
	b.Bytes(tagSenderID, senderID)
	b.Bytes(tagMsgType, []byte(msgType))
	b.BytesList(tagRecipientIDs, recipientIDs)
	return b.Build()
}
