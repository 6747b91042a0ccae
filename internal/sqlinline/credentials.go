package sqlinline

const QSelectProviderToken = `--sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7
select token
from provider_credentials
where provider = $1::text
  and revoked_at is null
order by updated_at desc
limit 1;
`

const QUpsertProviderToken = `--sql 6d4f5660-0f7c-4f73-a1f3-9ab6d5e6c7a3
insert into provider_credentials (provider, token, created_at, updated_at)
values ($1::text, $2::text, now(), now())
on conflict (provider) do update set
    token = excluded.token,
    revoked_at = null,
    updated_at = now();
`
