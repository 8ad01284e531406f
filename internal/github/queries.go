package github

// Typed queries against the host's GraphQL API. The repository-data query is
// deliberately a single batched document: one page fetches pull requests with
// their nested reviews and commits AND release tags, each behind its own
// cursor, so a repository costs one round-trip per page instead of four.

const discoverReposQuery = `
query($org: String!, $team: String!, $cursor: String) {
  organization(login: $org) {
    teams(query: $team, first: 1) {
      nodes {
        slug
        repositories(first: 100, after: $cursor) {
          nodes {
            name
            owner { login }
          }
          pageInfo { endCursor hasNextPage }
        }
      }
    }
  }
}`

const repoDataQuery = `
query($owner: String!, $name: String!, $prCursor: String, $relCursor: String,
      $includePRs: Boolean!, $includeReleases: Boolean!) {
  repository(owner: $owner, name: $name) {
    pullRequests(first: 50, after: $prCursor,
                 orderBy: {field: CREATED_AT, direction: DESC}) @include(if: $includePRs) {
      nodes {
        number
        title
        headRefName
        createdAt
        mergedAt
        closedAt
        additions
        deletions
        author { login }
        reviews(first: 30) {
          nodes {
            author { login }
            state
            createdAt
          }
        }
        commits(first: 100) {
          nodes {
            commit {
              oid
              authoredDate
              additions
              deletions
              author { user { login } }
            }
          }
        }
      }
      pageInfo { endCursor hasNextPage }
    }
    releases(first: 50, after: $relCursor,
             orderBy: {field: CREATED_AT, direction: DESC}) @include(if: $includeReleases) {
      nodes {
        tagName
        name
        publishedAt
      }
      pageInfo { endCursor hasNextPage }
    }
  }
}`

const personActivityQuery = `
query($query: String!, $cursor: String) {
  search(query: $query, type: ISSUE, first: 50, after: $cursor) {
    nodes {
      ... on PullRequest {
        number
        title
        headRefName
        createdAt
        mergedAt
        closedAt
        additions
        deletions
        author { login }
        reviews(first: 30) {
          nodes {
            author { login }
            state
            createdAt
          }
        }
        repository { nameWithOwner }
      }
    }
    pageInfo { endCursor hasNextPage }
  }
}`
