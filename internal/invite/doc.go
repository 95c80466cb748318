// Package invite builds and parses shareable room invite links and generates
// room codes.
//
// An invite link has the form
//
//	<origin>/join?code=<CODE>&name=<room name>
//
// and carries no secret material: anyone holding the code can join the room.
package invite
