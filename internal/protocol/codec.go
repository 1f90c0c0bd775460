package protocol

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/tinylib/msgp/msgp"

	"github.com/lox/freezeout/poker"
)

// ErrUnknownMessageType is returned by Unmarshal when the wire tag does not
// name any message defined in this package.
var ErrUnknownMessageType = fmt.Errorf("protocol: unknown message type")

var writerPool = sync.Pool{
	New: func() interface{} { return msgp.NewWriter(new(bytes.Buffer)) },
}

// Marshal encodes m using the canonical, fixed-field-order binary format: a
// one-byte tag followed by the type's array-encoded fields. The same bytes
// are produced on every platform.
func Marshal(m Message) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := writerPool.Get().(*msgp.Writer)
	w.Reset(buf)
	defer writerPool.Put(w)

	if err := EncodeMessage(w, m); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("protocol: flush: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a message previously produced by Marshal.
func Unmarshal(data []byte) (Message, error) {
	r := msgp.NewReader(bytes.NewReader(data))
	return DecodeMessage(r)
}

// EncodeMessage writes m as a single self-contained nested value: an array
// of [tag, fields], where fields is itself the type's array-encoded body.
// Wrapping the pair this way lets EncodeMessage be used as a building block
// inside larger structures (the signed envelope) without consuming an
// indeterminate number of top-level msgpack values.
func EncodeMessage(w *msgp.Writer, m Message) error {
	if err := w.WriteArrayHeader(2); err != nil {
		return fmt.Errorf("protocol: write envelope header: %w", err)
	}
	if err := w.WriteUint8(uint8(m.Tag())); err != nil {
		return fmt.Errorf("protocol: write tag: %w", err)
	}

	switch msg := m.(type) {
	case JoinServer:
		return encodeJoinServer(w, msg)
	case ServerJoined:
		return encodeServerJoined(w, msg)
	case JoinTable:
		return w.WriteArrayHeader(0)
	case TableJoined:
		return encodeTableJoined(w, msg)
	case PlayerJoined:
		return encodePlayerJoined(w, msg)
	case PlayerLeft:
		return encodePlayerLeft(w, msg)
	case LeaveTable:
		return w.WriteArrayHeader(0)
	case StartGame:
		return encodeStartGame(w, msg)
	case StartHand:
		return w.WriteArrayHeader(0)
	case DealCards:
		return encodeDealCards(w, msg)
	case GameUpdate:
		return encodeGameUpdate(w, msg)
	case ActionRequest:
		return encodeActionRequest(w, msg)
	case ActionResponse:
		return encodeActionResponse(w, msg)
	case EndHand:
		return encodeEndHand(w, msg)
	case ShowAccount:
		return encodeShowAccount(w, msg)
	case NotEnoughChips:
		return w.WriteArrayHeader(0)
	case NoTablesLeft:
		return w.WriteArrayHeader(0)
	case ErrorMessage:
		return encodeErrorMessage(w, msg)
	default:
		return ErrUnknownMessageType
	}
}

// DecodeMessage reads a [tag, fields] pair previously written by
// EncodeMessage and decodes the corresponding message.
func DecodeMessage(r *msgp.Reader) (Message, error) {
	if n, err := r.ReadArrayHeader(); err != nil {
		return nil, fmt.Errorf("protocol: read envelope header: %w", err)
	} else if n != 2 {
		return nil, fmt.Errorf("protocol: message: expected 2 fields, got %d", n)
	}
	tag, err := r.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("protocol: read tag: %w", err)
	}

	switch MessageTag(tag) {
	case TagJoinServer:
		return decodeJoinServer(r)
	case TagServerJoined:
		return decodeServerJoined(r)
	case TagJoinTable:
		if _, err := r.ReadArrayHeader(); err != nil {
			return nil, err
		}
		return JoinTable{}, nil
	case TagTableJoined:
		return decodeTableJoined(r)
	case TagPlayerJoined:
		return decodePlayerJoined(r)
	case TagPlayerLeft:
		return decodePlayerLeft(r)
	case TagLeaveTable:
		if _, err := r.ReadArrayHeader(); err != nil {
			return nil, err
		}
		return LeaveTable{}, nil
	case TagStartGame:
		return decodeStartGame(r)
	case TagStartHand:
		if _, err := r.ReadArrayHeader(); err != nil {
			return nil, err
		}
		return StartHand{}, nil
	case TagDealCards:
		return decodeDealCards(r)
	case TagGameUpdate:
		return decodeGameUpdate(r)
	case TagActionRequest:
		return decodeActionRequest(r)
	case TagActionResponse:
		return decodeActionResponse(r)
	case TagEndHand:
		return decodeEndHand(r)
	case TagShowAccount:
		return decodeShowAccount(r)
	case TagNotEnoughChips:
		if _, err := r.ReadArrayHeader(); err != nil {
			return nil, err
		}
		return NotEnoughChips{}, nil
	case TagNoTablesLeft:
		if _, err := r.ReadArrayHeader(); err != nil {
			return nil, err
		}
		return NoTablesLeft{}, nil
	case TagErrorMessage:
		return decodeErrorMessage(r)
	default:
		return nil, ErrUnknownMessageType
	}
}

// --- scalar field helpers ---

func writeCard(w *msgp.Writer, c poker.Card) error {
	return w.WriteUint32(uint32(c))
}

func readCard(r *msgp.Reader) (poker.Card, error) {
	u, err := r.ReadUint32()
	return poker.Card(u), err
}

func writePeerID(w *msgp.Writer, p PeerId) error {
	return w.WriteBytes(p[:])
}

func readPeerID(r *msgp.Reader) (PeerId, error) {
	b, err := r.ReadBytes(nil)
	if err != nil {
		return PeerId{}, err
	}
	var id PeerId
	if len(b) != len(id) {
		return PeerId{}, fmt.Errorf("protocol: peer id: want %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

func writeChips(w *msgp.Writer, c Chips) error {
	return w.WriteUint64(uint64(c))
}

func readChips(r *msgp.Reader) (Chips, error) {
	u, err := r.ReadUint64()
	return Chips(u), err
}

func writeAction(w *msgp.Writer, a PlayerAction) error {
	return w.WriteUint8(uint8(a))
}

func readAction(r *msgp.Reader) (PlayerAction, error) {
	u, err := r.ReadUint8()
	return PlayerAction(u), err
}

func writeCards(w *msgp.Writer, cards []poker.Card) error {
	if err := w.WriteArrayHeader(uint32(len(cards))); err != nil {
		return err
	}
	for _, c := range cards {
		if err := writeCard(w, c); err != nil {
			return err
		}
	}
	return nil
}

func readCards(r *msgp.Reader) ([]poker.Card, error) {
	n, err := r.ReadArrayHeader()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	cards := make([]poker.Card, n)
	for i := range cards {
		if cards[i], err = readCard(r); err != nil {
			return nil, err
		}
	}
	return cards, nil
}

func writePeerIDs(w *msgp.Writer, ids []PeerId) error {
	if err := w.WriteArrayHeader(uint32(len(ids))); err != nil {
		return err
	}
	for _, id := range ids {
		if err := writePeerID(w, id); err != nil {
			return err
		}
	}
	return nil
}

func readPeerIDs(r *msgp.Reader) ([]PeerId, error) {
	n, err := r.ReadArrayHeader()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	ids := make([]PeerId, n)
	for i := range ids {
		if ids[i], err = readPeerID(r); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func writeActions(w *msgp.Writer, actions []PlayerAction) error {
	if err := w.WriteArrayHeader(uint32(len(actions))); err != nil {
		return err
	}
	for _, a := range actions {
		if err := writeAction(w, a); err != nil {
			return err
		}
	}
	return nil
}

func readActions(r *msgp.Reader) ([]PlayerAction, error) {
	n, err := r.ReadArrayHeader()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	actions := make([]PlayerAction, n)
	for i := range actions {
		if actions[i], err = readAction(r); err != nil {
			return nil, err
		}
	}
	return actions, nil
}

func writePlayerCards(w *msgp.Writer, pc PlayerCards) error {
	if pc.Kind == PlayerCardsKnown {
		if err := w.WriteArrayHeader(3); err != nil {
			return err
		}
		if err := w.WriteUint8(uint8(pc.Kind)); err != nil {
			return err
		}
		if err := writeCard(w, pc.Card1); err != nil {
			return err
		}
		return writeCard(w, pc.Card2)
	}

	if err := w.WriteArrayHeader(1); err != nil {
		return err
	}
	return w.WriteUint8(uint8(pc.Kind))
}

func readPlayerCards(r *msgp.Reader) (PlayerCards, error) {
	n, err := r.ReadArrayHeader()
	if err != nil {
		return PlayerCards{}, err
	}
	k, err := r.ReadUint8()
	if err != nil {
		return PlayerCards{}, err
	}

	pc := PlayerCards{Kind: PlayerCardsKind(k)}
	if pc.Kind == PlayerCardsKnown {
		if n != 3 {
			return PlayerCards{}, fmt.Errorf("protocol: player cards: expected 3 fields, got %d", n)
		}
		if pc.Card1, err = readCard(r); err != nil {
			return PlayerCards{}, err
		}
		if pc.Card2, err = readCard(r); err != nil {
			return PlayerCards{}, err
		}
		return pc, nil
	}

	if n != 1 {
		return PlayerCards{}, fmt.Errorf("protocol: player cards: expected 1 field, got %d", n)
	}
	return pc, nil
}

func writePlayerUpdate(w *msgp.Writer, p PlayerUpdate) error {
	if err := w.WriteArrayHeader(9); err != nil {
		return err
	}
	if err := writePeerID(w, p.PeerID); err != nil {
		return err
	}
	if err := w.WriteString(p.Nickname); err != nil {
		return err
	}
	if err := writeChips(w, p.Chips); err != nil {
		return err
	}
	if err := writeChips(w, p.Bet); err != nil {
		return err
	}
	if err := writeAction(w, p.LastAction); err != nil {
		return err
	}
	if err := w.WriteBool(p.Active); err != nil {
		return err
	}
	if err := w.WriteBool(p.Button); err != nil {
		return err
	}
	if err := writePlayerCards(w, p.Cards); err != nil {
		return err
	}
	return w.WriteUint16(p.ActionTimer)
}

func readPlayerUpdate(r *msgp.Reader) (PlayerUpdate, error) {
	var p PlayerUpdate
	n, err := r.ReadArrayHeader()
	if err != nil {
		return p, err
	}
	if n != 9 {
		return p, fmt.Errorf("protocol: player update: expected 9 fields, got %d", n)
	}
	if p.PeerID, err = readPeerID(r); err != nil {
		return p, err
	}
	if p.Nickname, err = r.ReadString(); err != nil {
		return p, err
	}
	if p.Chips, err = readChips(r); err != nil {
		return p, err
	}
	if p.Bet, err = readChips(r); err != nil {
		return p, err
	}
	if p.LastAction, err = readAction(r); err != nil {
		return p, err
	}
	if p.Active, err = r.ReadBool(); err != nil {
		return p, err
	}
	if p.Button, err = r.ReadBool(); err != nil {
		return p, err
	}
	if p.Cards, err = readPlayerCards(r); err != nil {
		return p, err
	}
	if p.ActionTimer, err = r.ReadUint16(); err != nil {
		return p, err
	}
	return p, nil
}

func writePlayerUpdates(w *msgp.Writer, players []PlayerUpdate) error {
	if err := w.WriteArrayHeader(uint32(len(players))); err != nil {
		return err
	}
	for _, p := range players {
		if err := writePlayerUpdate(w, p); err != nil {
			return err
		}
	}
	return nil
}

func readPlayerUpdates(r *msgp.Reader) ([]PlayerUpdate, error) {
	n, err := r.ReadArrayHeader()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	players := make([]PlayerUpdate, n)
	for i := range players {
		if players[i], err = readPlayerUpdate(r); err != nil {
			return nil, err
		}
	}
	return players, nil
}

func writeHandPayoff(w *msgp.Writer, p HandPayoff) error {
	if err := w.WriteArrayHeader(3); err != nil {
		return err
	}
	if err := writePeerID(w, p.PeerID); err != nil {
		return err
	}
	if err := writeChips(w, p.Amount); err != nil {
		return err
	}
	return writeCards(w, p.BestHand)
}

func readHandPayoff(r *msgp.Reader) (HandPayoff, error) {
	var p HandPayoff
	n, err := r.ReadArrayHeader()
	if err != nil {
		return p, err
	}
	if n != 3 {
		return p, fmt.Errorf("protocol: hand payoff: expected 3 fields, got %d", n)
	}
	if p.PeerID, err = readPeerID(r); err != nil {
		return p, err
	}
	if p.Amount, err = readChips(r); err != nil {
		return p, err
	}
	if p.BestHand, err = readCards(r); err != nil {
		return p, err
	}
	return p, nil
}

func writeHandPayoffs(w *msgp.Writer, payoffs []HandPayoff) error {
	if err := w.WriteArrayHeader(uint32(len(payoffs))); err != nil {
		return err
	}
	for _, p := range payoffs {
		if err := writeHandPayoff(w, p); err != nil {
			return err
		}
	}
	return nil
}

func readHandPayoffs(r *msgp.Reader) ([]HandPayoff, error) {
	n, err := r.ReadArrayHeader()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	payoffs := make([]HandPayoff, n)
	for i := range payoffs {
		if payoffs[i], err = readHandPayoff(r); err != nil {
			return nil, err
		}
	}
	return payoffs, nil
}

// --- per-message encode/decode ---

func encodeJoinServer(w *msgp.Writer, m JoinServer) error {
	if err := w.WriteArrayHeader(1); err != nil {
		return err
	}
	return w.WriteString(m.Nickname)
}

func decodeJoinServer(r *msgp.Reader) (Message, error) {
	if n, err := r.ReadArrayHeader(); err != nil {
		return nil, err
	} else if n != 1 {
		return nil, fmt.Errorf("protocol: JoinServer: expected 1 field, got %d", n)
	}
	nickname, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return JoinServer{Nickname: nickname}, nil
}

func encodeServerJoined(w *msgp.Writer, m ServerJoined) error {
	if err := w.WriteArrayHeader(2); err != nil {
		return err
	}
	if err := w.WriteString(m.Nickname); err != nil {
		return err
	}
	return writeChips(w, m.Chips)
}

func decodeServerJoined(r *msgp.Reader) (Message, error) {
	if n, err := r.ReadArrayHeader(); err != nil {
		return nil, err
	} else if n != 2 {
		return nil, fmt.Errorf("protocol: ServerJoined: expected 2 fields, got %d", n)
	}
	nickname, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	chips, err := readChips(r)
	if err != nil {
		return nil, err
	}
	return ServerJoined{Nickname: nickname, Chips: chips}, nil
}

func encodeTableJoined(w *msgp.Writer, m TableJoined) error {
	if err := w.WriteArrayHeader(3); err != nil {
		return err
	}
	if err := w.WriteUint32(m.TableID); err != nil {
		return err
	}
	if err := writeChips(w, m.Chips); err != nil {
		return err
	}
	return w.WriteInt(m.Seats)
}

func decodeTableJoined(r *msgp.Reader) (Message, error) {
	if n, err := r.ReadArrayHeader(); err != nil {
		return nil, err
	} else if n != 3 {
		return nil, fmt.Errorf("protocol: TableJoined: expected 3 fields, got %d", n)
	}
	tableID, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	chips, err := readChips(r)
	if err != nil {
		return nil, err
	}
	seats, err := r.ReadInt()
	if err != nil {
		return nil, err
	}
	return TableJoined{TableID: tableID, Chips: chips, Seats: seats}, nil
}

func encodePlayerJoined(w *msgp.Writer, m PlayerJoined) error {
	if err := w.WriteArrayHeader(3); err != nil {
		return err
	}
	if err := writePeerID(w, m.PeerID); err != nil {
		return err
	}
	if err := w.WriteString(m.Nickname); err != nil {
		return err
	}
	return writeChips(w, m.Chips)
}

func decodePlayerJoined(r *msgp.Reader) (Message, error) {
	if n, err := r.ReadArrayHeader(); err != nil {
		return nil, err
	} else if n != 3 {
		return nil, fmt.Errorf("protocol: PlayerJoined: expected 3 fields, got %d", n)
	}
	peerID, err := readPeerID(r)
	if err != nil {
		return nil, err
	}
	nickname, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	chips, err := readChips(r)
	if err != nil {
		return nil, err
	}
	return PlayerJoined{PeerID: peerID, Nickname: nickname, Chips: chips}, nil
}

func encodePlayerLeft(w *msgp.Writer, m PlayerLeft) error {
	if err := w.WriteArrayHeader(1); err != nil {
		return err
	}
	return writePeerID(w, m.PeerID)
}

func decodePlayerLeft(r *msgp.Reader) (Message, error) {
	if n, err := r.ReadArrayHeader(); err != nil {
		return nil, err
	} else if n != 1 {
		return nil, fmt.Errorf("protocol: PlayerLeft: expected 1 field, got %d", n)
	}
	peerID, err := readPeerID(r)
	if err != nil {
		return nil, err
	}
	return PlayerLeft{PeerID: peerID}, nil
}

func encodeStartGame(w *msgp.Writer, m StartGame) error {
	if err := w.WriteArrayHeader(1); err != nil {
		return err
	}
	return writePeerIDs(w, m.Seats)
}

func decodeStartGame(r *msgp.Reader) (Message, error) {
	if n, err := r.ReadArrayHeader(); err != nil {
		return nil, err
	} else if n != 1 {
		return nil, fmt.Errorf("protocol: StartGame: expected 1 field, got %d", n)
	}
	seats, err := readPeerIDs(r)
	if err != nil {
		return nil, err
	}
	return StartGame{Seats: seats}, nil
}

func encodeDealCards(w *msgp.Writer, m DealCards) error {
	if err := w.WriteArrayHeader(2); err != nil {
		return err
	}
	if err := writeCard(w, m.Card1); err != nil {
		return err
	}
	return writeCard(w, m.Card2)
}

func decodeDealCards(r *msgp.Reader) (Message, error) {
	if n, err := r.ReadArrayHeader(); err != nil {
		return nil, err
	} else if n != 2 {
		return nil, fmt.Errorf("protocol: DealCards: expected 2 fields, got %d", n)
	}
	c1, err := readCard(r)
	if err != nil {
		return nil, err
	}
	c2, err := readCard(r)
	if err != nil {
		return nil, err
	}
	return DealCards{Card1: c1, Card2: c2}, nil
}

func encodeGameUpdate(w *msgp.Writer, m GameUpdate) error {
	if err := w.WriteArrayHeader(3); err != nil {
		return err
	}
	if err := writePlayerUpdates(w, m.Players); err != nil {
		return err
	}
	if err := writeCards(w, m.Board); err != nil {
		return err
	}
	return writeChips(w, m.Pot)
}

func decodeGameUpdate(r *msgp.Reader) (Message, error) {
	if n, err := r.ReadArrayHeader(); err != nil {
		return nil, err
	} else if n != 3 {
		return nil, fmt.Errorf("protocol: GameUpdate: expected 3 fields, got %d", n)
	}
	players, err := readPlayerUpdates(r)
	if err != nil {
		return nil, err
	}
	board, err := readCards(r)
	if err != nil {
		return nil, err
	}
	pot, err := readChips(r)
	if err != nil {
		return nil, err
	}
	return GameUpdate{Players: players, Board: board, Pot: pot}, nil
}

func encodeActionRequest(w *msgp.Writer, m ActionRequest) error {
	if err := w.WriteArrayHeader(4); err != nil {
		return err
	}
	if err := writePeerID(w, m.PeerID); err != nil {
		return err
	}
	if err := writeChips(w, m.MinRaise); err != nil {
		return err
	}
	if err := writeChips(w, m.BigBlind); err != nil {
		return err
	}
	return writeActions(w, m.Actions)
}

func decodeActionRequest(r *msgp.Reader) (Message, error) {
	if n, err := r.ReadArrayHeader(); err != nil {
		return nil, err
	} else if n != 4 {
		return nil, fmt.Errorf("protocol: ActionRequest: expected 4 fields, got %d", n)
	}
	peerID, err := readPeerID(r)
	if err != nil {
		return nil, err
	}
	minRaise, err := readChips(r)
	if err != nil {
		return nil, err
	}
	bigBlind, err := readChips(r)
	if err != nil {
		return nil, err
	}
	actions, err := readActions(r)
	if err != nil {
		return nil, err
	}
	return ActionRequest{PeerID: peerID, MinRaise: minRaise, BigBlind: bigBlind, Actions: actions}, nil
}

func encodeActionResponse(w *msgp.Writer, m ActionResponse) error {
	if err := w.WriteArrayHeader(2); err != nil {
		return err
	}
	if err := writeAction(w, m.Action); err != nil {
		return err
	}
	return writeChips(w, m.Amount)
}

func decodeActionResponse(r *msgp.Reader) (Message, error) {
	if n, err := r.ReadArrayHeader(); err != nil {
		return nil, err
	} else if n != 2 {
		return nil, fmt.Errorf("protocol: ActionResponse: expected 2 fields, got %d", n)
	}
	action, err := readAction(r)
	if err != nil {
		return nil, err
	}
	amount, err := readChips(r)
	if err != nil {
		return nil, err
	}
	return ActionResponse{Action: action, Amount: amount}, nil
}

func encodeEndHand(w *msgp.Writer, m EndHand) error {
	if err := w.WriteArrayHeader(1); err != nil {
		return err
	}
	return writeHandPayoffs(w, m.Payoffs)
}

func decodeEndHand(r *msgp.Reader) (Message, error) {
	if n, err := r.ReadArrayHeader(); err != nil {
		return nil, err
	} else if n != 1 {
		return nil, fmt.Errorf("protocol: EndHand: expected 1 field, got %d", n)
	}
	payoffs, err := readHandPayoffs(r)
	if err != nil {
		return nil, err
	}
	return EndHand{Payoffs: payoffs}, nil
}

func encodeShowAccount(w *msgp.Writer, m ShowAccount) error {
	if err := w.WriteArrayHeader(1); err != nil {
		return err
	}
	return writeChips(w, m.Chips)
}

func decodeShowAccount(r *msgp.Reader) (Message, error) {
	if n, err := r.ReadArrayHeader(); err != nil {
		return nil, err
	} else if n != 1 {
		return nil, fmt.Errorf("protocol: ShowAccount: expected 1 field, got %d", n)
	}
	chips, err := readChips(r)
	if err != nil {
		return nil, err
	}
	return ShowAccount{Chips: chips}, nil
}

func encodeErrorMessage(w *msgp.Writer, m ErrorMessage) error {
	if err := w.WriteArrayHeader(1); err != nil {
		return err
	}
	return w.WriteString(m.Text)
}

func decodeErrorMessage(r *msgp.Reader) (Message, error) {
	if n, err := r.ReadArrayHeader(); err != nil {
		return nil, err
	} else if n != 1 {
		return nil, fmt.Errorf("protocol: Error: expected 1 field, got %d", n)
	}
	text, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return ErrorMessage{Text: text}, nil
}
