package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// API groups the REST handlers mounted under /api/v1
type API struct {
	Users         *UserHandler
	Pairs         *PairHandler
	Channel       *ChannelHandler
	Calls         *CallHandler
	Moments       *MomentHandler
	Media         *MediaHandler
	Notifications *NotificationHandler
}

// Mount registers every route; auth guards all but registration
func (a *API) Mount(r chi.Router, auth func(http.Handler) http.Handler) {
	// Public routes
	r.Post("/users", a.Users.CreateUser)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Get("/users/me", a.Users.GetMe)
		r.Put("/users/me/push-token", a.Users.UpdatePushToken)
		r.Get("/users/singles", a.Users.FindSingles)
		r.Post("/users/{user_id}/block", a.Users.Block)

		r.Get("/pair", a.Pairs.GetStatus)
		r.Post("/pair/requests", a.Pairs.SendRequest)
		r.Post("/pair/requests/{request_id}/accept", a.Pairs.AcceptRequest)
		r.Post("/pair/requests/{request_id}/reject", a.Pairs.RejectRequest)
		r.Post("/pair/disconnect", a.Pairs.Disconnect)

		r.Get("/channel", a.Channel.GetChannel)
		r.Put("/channel/wallpaper", a.Channel.SetWallpaper)
		r.Get("/channel/presence", a.Channel.GetPartnerPresence)
		r.Post("/channel/read", a.Channel.MarkRead)
		r.Get("/channel/messages", a.Channel.ListMessages)
		r.Post("/channel/messages", a.Channel.SendMessage)
		r.Delete("/channel/messages/{message_id}", a.Channel.DeleteMessage)
		r.Post("/channel/messages/{message_id}/reactions", a.Channel.React)

		r.Get("/calls", a.Calls.ListCalls)
		r.Post("/calls", a.Calls.StartCall)
		r.Post("/calls/end", a.Calls.EndCall)
		r.Post("/calls/{call_id}/answer", a.Calls.AnswerCall)
		r.Post("/calls/{call_id}/reject", a.Calls.RejectCall)

		r.Get("/memories", a.Moments.ListMemories)
		r.Post("/memories", a.Moments.AddMemory)
		r.Delete("/memories/{memory_id}", a.Moments.DeleteMemory)
		r.Get("/events", a.Moments.ListEvents)
		r.Post("/events", a.Moments.AddEvent)
		r.Delete("/events/{event_id}", a.Moments.DeleteEvent)

		if a.Media != nil {
			r.Post("/uploads", a.Media.Upload)
		}

		r.Get("/notifications", a.Notifications.List)
		r.Post("/notifications/read", a.Notifications.MarkAllRead)
	})
}
