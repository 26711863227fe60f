package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/cityplanner/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to the marker store and the
// recommendation client.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	markerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Marker",
		Fields: graphql.Fields{
			"index":       &graphql.Field{Type: graphql.Int},
			"latitude":    &graphql.Field{Type: graphql.Float},
			"longitude":   &graphql.Field{Type: graphql.Float},
			"remove_path": &graphql.Field{Type: graphql.String},
		},
	})

	activityType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Activity",
		Fields: graphql.Fields{
			"name":        &graphql.Field{Type: graphql.String},
			"category":    &graphql.Field{Type: graphql.String},
			"description": &graphql.Field{Type: graphql.String},
			"latitude":    &graphql.Field{Type: graphql.Float},
			"longitude":   &graphql.Field{Type: graphql.Float},
		},
	})

	outcomeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Outcome",
		Fields: graphql.Fields{
			"request_id":  &graphql.Field{Type: graphql.String},
			"kind":        &graphql.Field{Type: graphql.String},
			"activities":  &graphql.Field{Type: graphql.NewList(activityType)},
			"dropped":     &graphql.Field{Type: graphql.Int},
			"submitted":   &graphql.Field{Type: graphql.Int},
			"reason":      &graphql.Field{Type: graphql.String},
			"notice":      &graphql.Field{Type: graphql.String},
			"duration_ms": &graphql.Field{Type: graphql.Int},
		},
	})

	statusType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RecommendationStatus",
		Fields: graphql.Fields{
			"state":        &graphql.Field{Type: graphql.String},
			"requesting":   &graphql.Field{Type: graphql.Boolean},
			"last_outcome": &graphql.Field{Type: outcomeType},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"city": &graphql.Field{
				Type:        graphql.String,
				Description: "Name of the city being planned",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.City.Name, nil
				},
			},
			"markers": &graphql.Field{
				Type:        graphql.NewList(markerType),
				Description: "User markers in list order",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return toMarkersJSON(deps.Store.UserMarkers()), nil
				},
			},
			"activities": &graphql.Field{
				Type:        graphql.NewList(activityType),
				Description: "Activity markers from the last successful request",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return toActivitiesJSON(deps.Store.ActivityMarkers()), nil
				},
			},
			"status": &graphql.Field{
				Type:        statusType,
				Description: "Recommendation client state",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return toStatusJSON(deps.Client.Status()), nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"addMarker": &graphql.Field{
				Type:        markerType,
				Description: "Append a user marker",
				Args: graphql.FieldConfigArgument{
					"latitude":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"longitude": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					pos := domain.Coordinate{
						Latitude:  p.Args["latitude"].(float64),
						Longitude: p.Args["longitude"].(float64),
					}
					if !validMarkerPosition(pos) {
						return nil, errors.New("latitude must be between -90 and 90")
					}
					return newMarkerJSON(deps.Store.AddUserMarker(pos), pos), nil
				},
			},
			"removeMarker": &graphql.Field{
				Type:        graphql.Boolean,
				Description: "Remove the user marker at index; false when out of range",
				Args: graphql.FieldConfigArgument{
					"index": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Store.RemoveUserMarker(p.Args["index"].(int)), nil
				},
			},
			"clearMarkers": &graphql.Field{
				Type:        graphql.Boolean,
				Description: "Remove every user marker",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					deps.Store.ClearUserMarkers()
					return true, nil
				},
			},
			"findActivities": &graphql.Field{
				Type:        outcomeType,
				Description: "Send the user markers to the recommendation service and wait for the outcome",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					task, err := deps.Client.Start(deps.baseCtx())
					if err != nil {
						return nil, gqlRefusal(err)
					}
					return toOutcomeJSON(task.Outcome()), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// refusalError carries the notice of a refused request as the GraphQL message.
type refusalError struct{ err error }

func (e refusalError) Error() string { return domain.NoticeFor(e.err) }
func (e refusalError) Unwrap() error { return e.err }

func gqlRefusal(err error) error { return refusalError{err: err} }

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
