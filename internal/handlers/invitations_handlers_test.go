package handlers

import (
	"net/http"
	"testing"

	"github.com/learncircle/backend/internal/models"
)

func TestInvitationEndpoints(t *testing.T) {
	env := setupTestEnv(t)
	_, hostToken := createTestUser(t, env.db, "Host", "inv-host@test.com", "password123", models.UserRoleHost)
	member, memberToken := createTestUser(t, env.db, "Member", "inv-member@test.com", "password123", models.UserRoleParticipant)
	_, strangerToken := createTestUser(t, env.db, "Stranger", "inv-stranger@test.com", "password123", models.UserRoleParticipant)

	groupID := createGroupViaAPI(t, env, hostToken, "Invitation Circle")

	var invitationID string

	t.Run("GET /api/invitations/ lists pending for my email", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/groups/"+groupID+"/invitations",
			map[string]any{"email": member.Email}, authHeaders(hostToken))
		assertStatus(t, resp, http.StatusCreated)
		invitationID = dataMap(t, decodeJSONMap(t, resp))["id"].(string)

		resp = performRequest(t, env.app, http.MethodGet, "/api/invitations/", nil, authHeaders(memberToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		list := dataList(t, body)
		if len(list) != 1 {
			t.Fatalf("expected one pending invitation, got %d", len(list))
		}
		entry := list[0].(map[string]any)
		if entry["group"].(map[string]any)["name"] != "Invitation Circle" {
			t.Fatalf("expected group metadata preloaded, got %v", entry["group"])
		}

		resp = performRequest(t, env.app, http.MethodGet, "/api/invitations/", nil, authHeaders(strangerToken))
		body = decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if got := len(dataList(t, body)); got != 0 {
			t.Fatalf("expected no invitations for stranger, got %d", got)
		}
	})

	t.Run("POST /api/invitations/:id/accept by non-addressee hidden", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/invitations/"+invitationID+"/accept", nil, authHeaders(strangerToken))
		assertStatus(t, resp, http.StatusNotFound)
	})

	t.Run("POST /api/invitations/:id/accept creates membership", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/invitations/"+invitationID+"/accept", nil, authHeaders(memberToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		data := dataMap(t, body)
		if data["status"] != string(models.InvitationAccepted) {
			t.Fatalf("expected accepted status, got %v", data["status"])
		}

		var membership models.GroupMembership
		if err := env.db.First(&membership, "group_id = ? AND user_id = ?", groupID, member.ID).Error; err != nil {
			t.Fatalf("expected membership after accept: %v", err)
		}
	})

	t.Run("POST /api/invitations/:id/accept twice conflicts", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/invitations/"+invitationID+"/accept", nil, authHeaders(memberToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusConflict)
		assertEnvelopeError(t, body, "this invitation has already been handled")
	})

	t.Run("accept for an existing member rolls back and stays pending", func(t *testing.T) {
		// The invitee is already a member when accepting: the membership
		// insert conflicts and the transaction must leave the invitation
		// pending.
		secondGroupID := createGroupViaAPI(t, env, hostToken, "Second Circle")
		var group models.Group
		if err := env.db.First(&group, "id = ?", secondGroupID).Error; err != nil {
			t.Fatalf("failed loading group: %v", err)
		}

		dupUser, dupToken := createTestUser(t, env.db, "Dup", "inv-dup@test.com", "password123", models.UserRoleParticipant)
		if err := env.db.Create(&models.GroupMembership{GroupID: group.ID, UserID: dupUser.ID}).Error; err != nil {
			t.Fatalf("failed seeding membership: %v", err)
		}
		invitation := models.Invitation{
			GroupID:     group.ID,
			Email:       dupUser.Email,
			InvitedByID: group.HostID,
			Status:      models.InvitationPending,
		}
		if err := env.db.Create(&invitation).Error; err != nil {
			t.Fatalf("failed seeding invitation: %v", err)
		}

		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/invitations/"+invitation.ID.String()+"/accept", nil, authHeaders(dupToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusConflict)
		assertEnvelopeError(t, body, "user is already a member of this group")

		var reloaded models.Invitation
		if err := env.db.First(&reloaded, "id = ?", invitation.ID).Error; err != nil {
			t.Fatalf("failed reloading invitation: %v", err)
		}
		if reloaded.Status != models.InvitationPending {
			t.Fatalf("expected invitation to stay pending, got %s", reloaded.Status)
		}
	})

	t.Run("POST /api/invitations/:id/decline is terminal", func(t *testing.T) {
		declinee, declineeToken := createTestUser(t, env.db, "Declinee", "inv-declinee@test.com", "password123", models.UserRoleParticipant)

		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/groups/"+groupID+"/invitations",
			map[string]any{"email": declinee.Email}, authHeaders(hostToken))
		assertStatus(t, resp, http.StatusCreated)
		declineID := dataMap(t, decodeJSONMap(t, resp))["id"].(string)

		resp = performJSONRequest(t, env.app, http.MethodPost, "/api/invitations/"+declineID+"/decline", nil, authHeaders(declineeToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if data := dataMap(t, body); data["status"] != string(models.InvitationDeclined) {
			t.Fatalf("expected declined status, got %v", data["status"])
		}

		// Declining again is a no-op, and accepting afterwards conflicts.
		resp = performJSONRequest(t, env.app, http.MethodPost, "/api/invitations/"+declineID+"/decline", nil, authHeaders(declineeToken))
		assertStatus(t, resp, http.StatusOK)

		resp = performJSONRequest(t, env.app, http.MethodPost, "/api/invitations/"+declineID+"/accept", nil, authHeaders(declineeToken))
		assertStatus(t, resp, http.StatusConflict)
	})

	t.Run("re-inviting a declined address stays blocked", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/groups/"+groupID+"/invitations",
			map[string]any{"email": "inv-declinee@test.com"}, authHeaders(hostToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusConflict)
		assertEnvelopeError(t, body, "this address has already been invited to the group")
	})
}
