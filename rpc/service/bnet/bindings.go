package bnet

import (
	"sort"

	"github.com/ValentinKolb/firestarter/rpc/service"
	"github.com/ValentinKolb/firestarter/rpc/transport"
)

// ids of the services implemented in this package
const (
	ConnectionServiceID    uint32 = 0
	AuthenticationServerID uint32 = 3
	ResponseServiceID             = transport.ResponseServiceID
)

const (
	ConnectionServiceName    = "bnet.protocol.connection.ConnectionService"
	AuthenticationServerName = "bnet.protocol.authentication.AuthenticationServer"
	ResponseServiceName      = "bnet.protocol.ResponseService"
)

// Binding assigns an id to a named service
type Binding struct {
	Name string
	Hash uint32
	ID   uint32
}

// Bindings is an immutable hash indexed binding table
type Bindings struct {
	byHash map[uint32]Binding
}

func newBindings(ids map[string]uint32) Bindings {
	b := Bindings{byHash: make(map[uint32]Binding, len(ids))}
	for name, id := range ids {
		hash := service.HashName(name)
		b.byHash[hash] = Binding{Name: name, Hash: hash, ID: id}
	}
	return b
}

// ByHash returns the binding of a service hash
func (b Bindings) ByHash(hash uint32) (Binding, bool) {
	binding, ok := b.byHash[hash]
	return binding, ok
}

// ByName returns the binding of a service name
func (b Bindings) ByName(name string) (Binding, bool) {
	return b.ByHash(service.HashName(name))
}

// All returns every binding ordered by id
func (b Bindings) All() []Binding {
	all := make([]Binding, 0, len(b.byHash))
	for _, binding := range b.byHash {
		all = append(all, binding)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

// Len returns the number of bindings
func (b Bindings) Len() int {
	return len(b.byHash)
}

// Exported holds the services this process exposes, the ids follow the
// order in which clients ask for them
var Exported = newBindings(map[string]uint32{
	ConnectionServiceName:                                       ConnectionServiceID,
	"bnet.protocol.account.AccountService":                      1,
	"bnet.protocol.achievements.AchievementsService":            2,
	AuthenticationServerName:                                    AuthenticationServerID,
	"bnet.protocol.challenge.ChallengeService":                  4,
	"bnet.protocol.channel_invitation.ChannelInvitationService": 5,
	"bnet.protocol.channel.Channel":                             6,
	"bnet.protocol.channel.ChannelOwner":                        7,
	"bnet.protocol.exchange.ExchangeService":                    8,
	"bnet.protocol.friends.FriendsService":                      9,
	"bnet.protocol.game_master.GameMaster":                      10,
	"bnet.protocol.game_utilities.GameUtilities":                11,
	"bnet.protocol.notification.NotificationService":            12,
	"bnet.protocol.presence.PresenceService":                    13,
	"bnet.protocol.report.ReportService":                        14,
	"bnet.protocol.resources.Resources":                         15,
	"bnet.protocol.search.SearchService":                        16,
	"bnet.protocol.user_manager.UserManagerService":             17,
	ResponseServiceName:                                         ResponseServiceID,
})

// Imported holds the services the client exposes, a client must bind
// exactly these ids
var Imported = newBindings(map[string]uint32{
	"bnet.protocol.account.AccountNotify":                      1,
	"bnet.protocol.achievements.AchievementsNotify":            2,
	"bnet.protocol.authentication.AuthenticationClient":        3,
	"bnet.protocol.challenge.ChallengeNotify":                  4,
	"bnet.protocol.channel_invitation.ChannelInvitationNotify": 5,
	"bnet.protocol.channel.ChannelSubscriber":                  6,
	"bnet.protocol.exchange.ExchangeNotify":                    7,
	"bnet.protocol.diag.DiagService":                           8,
	"bnet.protocol.friends.FriendsNotify":                      9,
	"bnet.protocol.notification.NotificationListener":          10,
	"bnet.protocol.user_manager.UserManagerNotify":             11,
	ResponseServiceName:                                        ResponseServiceID,
})
