package tokencache_test

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/tokenops/tokencache"
)

func ExampleStore_FindAccessToken() {
	ctx := context.Background()
	store := tokencache.NewStore()

	cachedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	_ = store.UpsertAccessToken(ctx, tokencache.AccessToken{
		Credential: tokencache.Credential{
			HomeAccountID: "uid.utid",
			Environment:   "login.example.net",
			ClientID:      "my-app",
			Secret:        "eyJ0eXAi...",
		},
		Realm:     "utid",
		Target:    "User.Read Mail.Read Calendars.Read",
		CachedAt:  cachedAt,
		ExpiresOn: cachedAt.Add(time.Hour),
	})

	at, ok := store.FindAccessToken(ctx, tokencache.AccessTokenQuery{
		ClientID:      "my-app",
		HomeAccountID: "uid.utid",
		Realm:         "utid",
		Scopes:        []string{"openid", "mail.read"},
		Aliases:       []string{"login.example.com", "login.example.net"},
	})
	fmt.Println(ok, at.Target)
	// Output:
	// true User.Read Mail.Read Calendars.Read
}

func ExampleAccessTokenKey() {
	fmt.Println(tokencache.AccessTokenKey("UID.UTID", "Login.Example.com", "my-app", "utid", "User.Read"))
	fmt.Println(tokencache.RefreshTokenKey("uid.utid", "login.example.com", "1"))
	// Output:
	// uid.utid-login.example.com-accesstoken-my-app-utid-user.read
	// uid.utid-login.example.com-refreshtoken-1--
}

func ExampleStore_Serialize() {
	store := tokencache.NewStore()
	_ = store.UpsertAppMetadata(context.Background(), tokencache.AppMetadata{
		ClientID:    "my-app",
		Environment: "login.example.com",
		FamilyID:    "1",
	})

	data, _ := store.Serialize()
	fmt.Println(string(data))
	// Output:
	// {
	//   "Account": {},
	//   "AccessToken": {},
	//   "RefreshToken": {},
	//   "IdToken": {},
	//   "AppMetadata": {
	//     "appmetadata-login.example.com-my-app": {
	//       "client_id": "my-app",
	//       "environment": "login.example.com",
	//       "family_id": "1"
	//     }
	//   }
	// }
}
