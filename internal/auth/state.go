package auth

type State string

const (
	STATE_UNAUTHENTICATED State = "unauthenticated"
	STATE_AWAITING_LOGIN  State = "awaiting_manual_login"
	STATE_AUTHENTICATED   State = "authenticated"
)

type Action string

const (
	ACTION_SETUP          Action = "setup"
	ACTION_COMPLETE       Action = "complete"
	ACTION_RESTORE        Action = "restore"
	ACTION_STATUS         Action = "status"
	ACTION_LIST_TENANTS   Action = "list_tenants"
	ACTION_SWITCH_TENANT  Action = "switch_tenant"
	ACTION_DELETE_SESSION Action = "delete_session"
	ACTION_LOGOUT         Action = "logout"
)

var anyState = []State{STATE_UNAUTHENTICATED, STATE_AWAITING_LOGIN, STATE_AUTHENTICATED}

// transitions lists the states each action may start from.
var transitions = map[Action][]State{
	ACTION_SETUP:          {STATE_UNAUTHENTICATED, STATE_AWAITING_LOGIN},
	ACTION_COMPLETE:       {STATE_AWAITING_LOGIN},
	ACTION_RESTORE:        anyState,
	ACTION_STATUS:         anyState,
	ACTION_LIST_TENANTS:   {STATE_AUTHENTICATED},
	ACTION_SWITCH_TENANT:  {STATE_AUTHENTICATED},
	ACTION_DELETE_SESSION: anyState,
	ACTION_LOGOUT:         anyState,
}

func ValidTransition(action Action, from State) bool {
	for _, s := range transitions[action] {
		if s == from {
			return true
		}
	}
	return false
}
